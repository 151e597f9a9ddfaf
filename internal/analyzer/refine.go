package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

const maxPromptMarkup = 12000

const refineSystemPrompt = `You help build crawlers for Korean school and education-office job boards.
Given a listing page, answer with a single JSON object and nothing else:
{"rows": [...], "titles": [...], "dates": [...], "attachments": [...], "pagination": [...]}
Each value is an ordered list of CSS selectors, best first. Title, date and attachment
selectors are evaluated inside one row. Use only standard CSS.`

// hints is the selector object the service is asked for. Keys from older
// prompt formats are accepted too.
type hints struct {
	Rows        []string `mapstructure:"rows"`
	RowAlt      []string `mapstructure:"rowSelectors"`
	Titles      []string `mapstructure:"titles"`
	TitleAlt    []string `mapstructure:"titleSelectors"`
	Dates       []string `mapstructure:"dates"`
	DateAlt     []string `mapstructure:"dateSelectors"`
	Attachments []string `mapstructure:"attachments"`
	AttachAlt   []string `mapstructure:"attachmentSelectors"`
	Pagination  []string `mapstructure:"pagination"`
	PageAlt     []string `mapstructure:"paginationSelectors"`
}

func (h hints) get(f domain.Field) []string {
	switch f {
	case domain.FieldRows:
		return domain.Merge(h.Rows, h.RowAlt)
	case domain.FieldTitles:
		return domain.Merge(h.Titles, h.TitleAlt)
	case domain.FieldDates:
		return domain.Merge(h.Dates, h.DateAlt)
	case domain.FieldAttachments:
		return domain.Merge(h.Attachments, h.AttachAlt)
	case domain.FieldPagination:
		return domain.Merge(h.Pagination, h.PageAlt)
	}
	return nil
}

// Refiner asks a generative service for selector hints and prepends them.
type Refiner struct {
	client llm.Client
	log    logger.Logger
}

// NewRefiner returns a Refiner; a nil client makes Refine a no-op.
func NewRefiner(client llm.Client, log logger.Logger) *Refiner {
	return &Refiner{client: client, log: log}
}

// Refine returns set with service-suggested selectors ahead of the existing
// candidates. Any failure returns set unchanged.
func (r *Refiner) Refine(ctx context.Context, board domain.BoardSource, markup string, set domain.SelectorSet) domain.SelectorSet {
	if r == nil || r.client == nil || strings.TrimSpace(markup) == "" {
		return set
	}

	raw, err := r.client.CompleteWithSystem(ctx, refineSystemPrompt, refinePrompt(board, markup, set))
	if err != nil {
		r.log.Warn("Selector refinement unavailable", logger.Board(board.Name), logger.Error(err))
		return set
	}
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		r.log.Warn("Selector refinement answer was not JSON", logger.Board(board.Name), logger.Error(err))
		return set
	}
	var h hints
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &h})
	if err != nil {
		return set
	}
	if err := dec.Decode(obj); err != nil {
		r.log.Warn("Selector refinement answer had unexpected shape", logger.Board(board.Name), logger.Error(err))
		return set
	}

	out := set.Clone()
	for _, f := range domain.Fields {
		if hinted := h.get(f); len(hinted) > 0 {
			out.Set(f, domain.Merge(hinted, set.Get(f)))
		}
	}
	r.log.Debug("Selectors refined", logger.Board(board.Name), logger.Strings("rows", out.Rows))
	return out
}

func refinePrompt(board domain.BoardSource, markup string, set domain.SelectorSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Board: %s\nURL: %s\n\n", board.Name, board.URL)
	b.WriteString("Current candidates:\n")
	for _, f := range domain.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f, strings.Join(set.Get(f), " | "))
	}
	b.WriteString("\nPage markup:\n")
	b.WriteString(condense(markup, maxPromptMarkup))
	return b.String()
}

// condense drops scripts and styles and truncates the body markup.
func condense(markup string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return truncate(markup, limit)
	}
	doc.Find("script, style, noscript, svg, iframe, link, meta").Remove()
	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return truncate(markup, limit)
	}
	return truncate(strings.Join(strings.Fields(html), " "), limit)
}
