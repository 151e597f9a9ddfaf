package repair

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

const maxPromptSource = 16000

const proposeSystemPrompt = `You debug generated Go crawlers for Korean education job boards.
The crawler received a scrape.Page and failed at runtime. Reply with one JSON object only:
{"root_cause": "...",
 "fixes": [{"priority": 1, "issue": "...", "solution": "...", "line_number": 12}],
 "regenerate_needed": true,
 "suggested_selectors": {"rows": ["..."], "titles": ["..."], "dates": ["..."], "attachments": ["..."], "pagination": ["..."]}}
Priority 1 is most urgent. Suggest selectors only for fields you believe are wrong.`

// Result is the interpretation of one service response: either Parsed or Unparsed.
type Result interface {
	isResult()
}

// Parsed is a response that decoded into a structured proposal.
type Parsed struct {
	Proposal domain.RepairProposal
}

// Unparsed is a response that held no usable structure.
type Unparsed struct {
	Raw string
}

func (Parsed) isResult()   {}
func (Unparsed) isResult() {}

// Proposal turns any Result into a proposal. Unparsed text becomes the root
// cause and always asks for regeneration.
func Proposal(r Result) domain.RepairProposal {
	switch v := r.(type) {
	case Parsed:
		return v.Proposal
	case Unparsed:
		return domain.RepairProposal{RootCause: v.Raw, RegenerateNeeded: true}
	}
	return domain.RepairProposal{RegenerateNeeded: true}
}

// Interpret decodes a raw service answer. Fences, strict JSON and JSON5 are
// all accepted; anything else is Unparsed.
func Interpret(raw string) Result {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return Unparsed{Raw: raw}
	}
	var p domain.RepairProposal
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       priorityHook,
		Result:           &p,
	})
	if err != nil {
		return Unparsed{Raw: raw}
	}
	if err := dec.Decode(snakeKeys(obj)); err != nil {
		return Unparsed{Raw: raw}
	}
	if strings.TrimSpace(p.RootCause) == "" && len(p.Fixes) == 0 {
		return Unparsed{Raw: raw}
	}
	sort.SliceStable(p.Fixes, func(i, j int) bool { return p.Fixes[i].Priority < p.Fixes[j].Priority })
	return Parsed{Proposal: p}
}

// LLMRepairer asks a generative service why a live attempt failed.
type LLMRepairer struct {
	client llm.Client
	log    logger.Logger
}

// NewLLMRepairer returns a repairer. A nil client yields proposals built from
// the errors alone.
func NewLLMRepairer(client llm.Client, log logger.Logger) *LLMRepairer {
	return &LLMRepairer{client: client, log: log}
}

// AnalyzeAndPropose never fails: service errors and malformed answers both
// become proposals that request regeneration.
func (r *LLMRepairer) AnalyzeAndPropose(
	ctx context.Context,
	board domain.BoardSource,
	module domain.SynthesizedModule,
	errs []domain.StepError,
) domain.RepairProposal {
	log := r.log.With(logger.Board(board.Name))
	if r.client == nil {
		return offlineProposal(errs)
	}

	raw, err := r.client.CompleteWithSystem(ctx, proposeSystemPrompt, proposePrompt(board, module, errs))
	if err != nil {
		log.Warn("Repair service call failed", logger.Error(err))
		return domain.RepairProposal{RootCause: err.Error(), RegenerateNeeded: true}
	}

	res := Interpret(raw)
	switch v := res.(type) {
	case Parsed:
		log.Debug("Repair proposal parsed",
			logger.Int("fixes", len(v.Proposal.Fixes)),
			logger.Bool("regenerate", v.Proposal.RegenerateNeeded),
		)
	case Unparsed:
		log.Warn("Repair answer was not structured, using raw text", logger.Int("length", len(v.Raw)))
	}
	return Proposal(res)
}

func offlineProposal(errs []domain.StepError) domain.RepairProposal {
	p := domain.RepairProposal{RegenerateNeeded: true}
	if len(errs) == 0 {
		p.RootCause = "live attempt failed without errors"
		return p
	}
	p.RootCause = errs[0].String()
	for i, e := range errs {
		p.Fixes = append(p.Fixes, domain.Fix{
			Priority: i + 1,
			Issue:    e.String(),
			Solution: remedy(e.Kind),
		})
	}
	return p
}

func remedy(k domain.ErrorKind) string {
	switch k {
	case domain.KindSelectorMismatch:
		return "widen the row search"
	case domain.KindRowExtraction:
		return "fall back to anchor text for titles"
	case domain.KindFatalExecution, domain.KindExternalService:
		return "wait for rows before extracting"
	case domain.KindStaticCompile:
		return "regenerate from the next selector candidates"
	}
	return "regenerate"
}

func proposePrompt(board domain.BoardSource, module domain.SynthesizedModule, errs []domain.StepError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Board: %s\nURL: %s\n\n", board.Name, board.URL)
	b.WriteString("Selectors in use:\n")
	for _, f := range domain.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f, strings.Join(module.Selectors.Get(f), " | "))
	}
	b.WriteString("\nErrors, in order:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "- %s\n", e.String())
	}
	src := module.SourceText
	if len(src) > maxPromptSource {
		src = src[:maxPromptSource]
	}
	b.WriteString("\nCrawler source:\n")
	b.WriteString(src)
	return b.String()
}

// priorityHook lets services answer "high" or "2" where a number is expected.
func priorityHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.String || to != reflect.Int {
		return data, nil
	}
	s := strings.ToLower(strings.TrimSpace(data.(string)))
	switch s {
	case "critical", "high":
		return 1, nil
	case "medium", "normal":
		return 2, nil
	case "low":
		return 3, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	return data, nil
}

// snakeKeys rewrites camelCase object keys so "rootCause" decodes like "root_cause".
func snakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[snake(k)] = snakeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = snakeKeys(val)
		}
		return out
	}
	return v
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
