// Package synth renders board crawler source from a selector set. Synthesis
// is pure text generation: it never touches the target site.
package synth

import (
	"bytes"
	"fmt"
	"go/format"
	"hash/fnv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

// PackageName is the package every crawler is generated in.
const PackageName = "boards"

// widenedRows are tried after the generic row fallbacks once a previous
// attempt detected no rows at all.
var widenedRows = []string{"tr:has(a)", "li:has(a)", "div:has(> a)", "dl:has(a)", "article"}

var tmpl = template.Must(template.New("crawler").Funcs(template.FuncMap{
	"raw": func(s string) string { return "`" + s + "`" },
}).Parse(crawlerTemplate))

// chain is one field's literal list: the baked head and its fallbacks.
type chain struct {
	Head string
	Tail []string
}

type view struct {
	Board        domain.BoardSource
	GeneratedAt  string
	ContextLines []string
	Package      string
	ImportPath   string
	Function     string

	Rows, Titles, Dates, Attachments, Pagination chain

	UsesTable   bool
	WaitForRows bool
	AnchorTitle bool
}

// Synthesizer renders crawler modules.
type Synthesizer struct {
	log logger.Logger
	now func() time.Time
}

// New returns a Synthesizer stamping modules with the wall clock.
func New(log logger.Logger) *Synthesizer {
	return &Synthesizer{log: log, now: time.Now}
}

// Synthesize renders a crawler for board from set. errCtx, when non-nil, is
// embedded verbatim as comments and switches on the handling its errors
// implicate. Source that does not format (e.g. a selector that breaks its
// literal) is returned unformatted so the validator can report it.
func (s *Synthesizer) Synthesize(board domain.BoardSource, set domain.SelectorSet, errCtx *domain.ErrorContext) (domain.SynthesizedModule, error) {
	defaults := domain.DefaultSelectors()
	generatedAt := s.now().UTC().Truncate(time.Second)

	v := view{
		Board:        sanitizeBoard(board),
		GeneratedAt:  generatedAt.Format(time.RFC3339),
		ContextLines: contextLines(errCtx),
		Package:      PackageName,
		ImportPath:   scrape.ImportPath,
		Function:     FunctionName(board.Name),
		Rows:         fieldChain(set, defaults, domain.FieldRows),
		Titles:       fieldChain(set, defaults, domain.FieldTitles),
		Dates:        fieldChain(set, defaults, domain.FieldDates),
		Attachments:  fieldChain(set, defaults, domain.FieldAttachments),
		Pagination:   fieldChain(set, defaults, domain.FieldPagination),
		UsesTable:    set.UsesTable,
		WaitForRows:  errCtx.Has(domain.KindFatalExecution) || errCtx.Has(domain.KindExternalService),
		AnchorTitle:  errCtx.Has(domain.KindRowExtraction),
	}
	if errCtx.Has(domain.KindSelectorMismatch) {
		v.Rows.Tail = domain.Merge(v.Rows.Tail, widenedRows)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return domain.SynthesizedModule{}, fmt.Errorf("render crawler for %s: %w", board.Name, err)
	}
	src := buf.Bytes()
	if formatted, err := format.Source(src); err == nil {
		src = formatted
	} else {
		s.log.Debug("Synthesized source does not format", logger.Board(board.Name), logger.Error(err))
	}

	return domain.SynthesizedModule{
		ID:           uuid.NewString(),
		SourceText:   string(src),
		Selectors:    set.Clone(),
		GeneratedAt:  generatedAt,
		PackageName:  PackageName,
		FunctionName: v.Function,
	}, nil
}

// fieldChain bakes the set's head candidate ahead of the generic defaults.
func fieldChain(set, defaults domain.SelectorSet, f domain.Field) chain {
	head := set.Head(f)
	if head == "" {
		head = defaults.Head(f)
	}
	tail := make([]string, 0, len(defaults.Get(f)))
	for _, d := range defaults.Get(f) {
		if d != head {
			tail = append(tail, d)
		}
	}
	return chain{Head: head, Tail: tail}
}

func contextLines(errCtx *domain.ErrorContext) []string {
	text := errCtx.Text()
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n")
}

// sanitizeBoard keeps header comments on one line each.
func sanitizeBoard(b domain.BoardSource) domain.BoardSource {
	oneLine := strings.NewReplacer("\r", " ", "\n", " ")
	b.Name = oneLine.Replace(b.Name)
	b.URL = oneLine.Replace(b.URL)
	b.Region = oneLine.Replace(b.Region)
	return b
}

// FunctionName derives the exported entry point from a board name:
// "seoul edu-office" becomes CrawlSeoulEduOffice. Names without ASCII
// letters get a stable hash suffix instead.
func FunctionName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if upper {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	ident := b.String()
	if ident == "" || unicode.IsDigit(rune(ident[0])) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(name))
		ident = fmt.Sprintf("Board%s%08x", ident, h.Sum32())
	}
	return "Crawl" + ident
}
