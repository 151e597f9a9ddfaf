package domain

import "fmt"

// ErrorKind classifies failures across the pipeline.
type ErrorKind string

const (
	KindAnalysisDefect   ErrorKind = "analysis_defect"
	KindStaticCompile    ErrorKind = "static_compile"
	KindRowExtraction    ErrorKind = "row_extraction"
	KindFatalExecution   ErrorKind = "fatal_execution"
	KindSelectorMismatch ErrorKind = "selector_mismatch"
	KindExternalService  ErrorKind = "external_service"
)

// StepError is a failure attributed to one step of a live execution.
type StepError struct {
	Step  string    `json:"step"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

func (e StepError) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Step, e.Error)
}

// Record is one board post extracted by a synthesized module.
type Record struct {
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	Organization  string            `json:"organization"`
	Location      string            `json:"location"`
	PostedDate    string            `json:"posted_date,omitempty"`
	DetailContent string            `json:"detail_content,omitempty"`
	AttachmentURL string            `json:"attachment_url,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// ExecutionResult is what one live attempt produced.
type ExecutionResult struct {
	Records []Record    `json:"records"`
	Errors  []StepError `json:"errors"`
	Fatal   bool        `json:"fatal"`
}

// Succeeded reports whether the attempt collected records without a fatal failure.
// Row warnings do not prevent success.
func (r ExecutionResult) Succeeded() bool {
	return len(r.Records) > 0 && !r.Fatal
}

// Has reports whether any error of kind k was recorded.
func (r ExecutionResult) Has(k ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Kind == k {
			return true
		}
	}
	return false
}
