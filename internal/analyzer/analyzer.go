// Package analyzer derives selector candidates for a board listing page from
// its markup. Discovery is best effort: every field always ends up with its
// generic defaults behind whatever the markup suggested.
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

const (
	sampleTextLength = 80
	sampleRows       = 5

	tableConfidence   = 0.90
	listConfidence    = 0.80
	repeatConfidence  = 0.65
	headerConfidence  = 0.90
	classConfidence   = 0.80
	patternConfidence = 0.70
)

// Candidate is one field's discovered selectors, best first.
type Candidate struct {
	Field      domain.Field `json:"field"                 yaml:"field"`
	Selectors  []string     `json:"selectors"             yaml:"selectors"`
	Confidence float64      `json:"confidence"            yaml:"confidence"`
	SampleText string       `json:"sample_text,omitempty" yaml:"sample_text,omitempty"`
}

// Report is the outcome of analyzing one page.
type Report struct {
	Set        domain.SelectorSet `json:"selectors"  yaml:"selectors"`
	Candidates []Candidate        `json:"candidates" yaml:"candidates"`
}

// heuristic discovers candidates for one field.
type heuristic func(s *scan) Candidate

// Analyzer turns markup into a SelectorSet.
type Analyzer struct {
	log        logger.Logger
	heuristics map[domain.Field]heuristic
}

// New returns an Analyzer with the built-in heuristics.
func New(log logger.Logger) *Analyzer {
	return &Analyzer{
		log: log,
		heuristics: map[domain.Field]heuristic{
			domain.FieldRows:        discoverRows,
			domain.FieldTitles:      discoverTitles,
			domain.FieldDates:       discoverDates,
			domain.FieldAttachments: discoverAttachments,
			domain.FieldPagination:  discoverPagination,
		},
	}
}

// Analyze returns the selector set for markup. Empty or unparsable markup
// yields the defaults for every field.
func (a *Analyzer) Analyze(markup string) domain.SelectorSet {
	return a.Inspect(markup).Set
}

// Inspect is Analyze plus the per-field discovery detail.
func (a *Analyzer) Inspect(markup string) Report {
	defaults := domain.DefaultSelectors()
	report := Report{Set: defaults.Clone()}

	if strings.TrimSpace(markup) == "" {
		a.log.Debug("Empty markup, using default selectors")
		return report
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		a.log.Warn("Markup could not be parsed, using default selectors", logger.Error(err))
		return report
	}

	s := &scan{doc: doc}
	for _, f := range domain.Fields {
		c := a.run(f, s)
		report.Candidates = append(report.Candidates, c)
		merged := domain.Merge(c.Selectors, defaults.Get(f))
		if len(merged) == 0 {
			merged = defaults.Get(f)
		}
		report.Set.Set(f, merged)
	}
	report.Set.UsesTable = s.usesTable()
	return report
}

// run applies one heuristic inside its own failure boundary.
func (a *Analyzer) run(f domain.Field, s *scan) (c Candidate) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("Selector heuristic failed, falling back to defaults",
				logger.String("field", string(f)),
				logger.String("panic", fmt.Sprint(r)),
			)
			c = Candidate{Field: f}
		}
	}()
	h, ok := a.heuristics[f]
	if !ok {
		return Candidate{Field: f}
	}
	c = h(s)
	c.Field = f
	return c
}

// scan carries the parsed page and what earlier fields learned about it.
type scan struct {
	doc     *goquery.Document
	rowSel  string
	inTable bool
	rowDone bool
	rowCand Candidate
}

// rows returns up to sampleRows rows selected by the best row candidate, or
// by "table tr" when none was discovered.
func (s *scan) rows() *goquery.Selection {
	if !s.rowDone {
		discoverRows(s)
	}
	sel := s.rowSel
	if sel == "" {
		sel = "table tr"
	}
	all := s.doc.Find(sel)
	return all.Slice(0, min(sampleRows, all.Length()))
}

func (s *scan) usesTable() bool {
	if s.rowSel != "" {
		return s.inTable
	}
	return s.doc.Find("table tr").Length() > 0
}

// scored accumulates selectors with a score and keeps the strongest confidence.
type scored struct {
	order  []string
	score  map[string]float64
	best   float64
	sample string
}

func newScored() *scored {
	return &scored{score: map[string]float64{}}
}

func (sc *scored) add(sel string, score, confidence float64, sample string) {
	if sel == "" {
		return
	}
	if _, ok := sc.score[sel]; !ok {
		sc.order = append(sc.order, sel)
	}
	sc.score[sel] += score
	if confidence > sc.best {
		sc.best = confidence
		if sample != "" {
			sc.sample = truncate(sample, sampleTextLength)
		}
	}
}

func (sc *scored) candidate() Candidate {
	out := append([]string(nil), sc.order...)
	sort.SliceStable(out, func(i, j int) bool { return sc.score[out[i]] > sc.score[out[j]] })
	return Candidate{Selectors: out, Confidence: sc.best, SampleText: sc.sample}
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
