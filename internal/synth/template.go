package synth

// crawlerTemplate renders one board crawler. Only the head candidate of each
// field is baked in as a raw string literal; the generic fallbacks follow it
// as quoted literals.
const crawlerTemplate = `// Code generated by boardsynth. DO NOT EDIT.
// Board: {{.Board.Name}}
// Source: {{.Board.URL}}
// Generated at: {{.GeneratedAt}}
{{- if .ContextLines}}
//
// Repair context:
{{- range .ContextLines}}
// {{.}}
{{- end}}
{{- end}}

package {{.Package}}

import (
	"context"
	"fmt"

	"{{.ImportPath}}"
)

// {{.Function}} collects up to opts.BatchSize posts from the {{.Board.Name | printf "%q"}} board.
func {{.Function}}(ctx context.Context, page scrape.Page, opts scrape.Options) (*scrape.Result, error) {
	opts = opts.Normalize()

	rowSelectors := []string{ {{- raw .Rows.Head}}{{range .Rows.Tail}}, {{printf "%q" .}}{{end -}} }
	titleSelectors := []string{ {{- raw .Titles.Head}}{{range .Titles.Tail}}, {{printf "%q" .}}{{end -}} }
	dateSelectors := []string{ {{- raw .Dates.Head}}{{range .Dates.Tail}}, {{printf "%q" .}}{{end -}} }
	attachmentSelectors := []string{ {{- raw .Attachments.Head}}{{range .Attachments.Tail}}, {{printf "%q" .}}{{end -}} }
	paginationSelectors := []string{ {{- raw .Pagination.Head}}{{range .Pagination.Tail}}, {{printf "%q" .}}{{end -}} }

	result := scrape.NewResult()
	if err := page.Goto(ctx, {{printf "%q" .Board.URL}}); err != nil {
		return result, fmt.Errorf("navigate: %w", err)
	}

	for pageNo := 1; pageNo <= opts.MaxPages && len(result.Records) < opts.BatchSize; pageNo++ {
{{- if .WaitForRows}}
		for _, sel := range rowSelectors {
			if page.WaitFor(ctx, sel) == nil {
				break
			}
		}
{{- end}}
		var rows []scrape.Element
		rowSelector := ""
		for _, sel := range rowSelectors {
			found, err := page.FindAll(ctx, sel)
			if err == nil && len(found) > 0 {
				rows, rowSelector = found, sel
				break
			}
		}
		if len(rows) == 0 {
			break
		}

		base := page.URL()
		for i, row := range rows {
			if len(result.Records) >= opts.BatchSize {
				break
			}
			step := fmt.Sprintf("page %d row %d", pageNo, i+1)
			func() {
				defer func() {
					if r := recover(); r != nil {
						result.Warn(step, scrape.Recovered(r))
					}
				}()

				title, href, titleSelector, err := scrape.FirstLink(row, titleSelectors)
{{- if .AnchorTitle}}
				if err != nil {
					if anchorTitle, anchorHref, anchorErr := scrape.AnchorTitle(row); anchorErr == nil {
						title, href, titleSelector, err = anchorTitle, anchorHref, "a[href]", nil
					}
				}
{{- end}}
				if err != nil {
					result.Warn(step, err)
					return
				}
				link := scrape.Resolve(base, href)

				dateText, dateSelector := scrape.FirstText(row, dateSelectors)
				posted := scrape.FindDate(dateText)
{{- if .UsesTable}}
				if posted == "" {
					if cells, cellErr := row.FindAll("td"); cellErr == nil {
						for _, cell := range cells {
							text, _ := cell.Text()
							if d := scrape.FindDate(text); d != "" {
								posted, dateSelector = d, "td"
								break
							}
						}
					}
				}
{{- end}}
				attachment, attachmentSelector := scrape.FirstAttr(row, attachmentSelectors, "href")

				rec := scrape.Record{
					Title:         title,
					URL:           link,
					Organization:  {{printf "%q" .Board.Name}},
					Location:      {{printf "%q" .Board.Region}},
					PostedDate:    posted,
					AttachmentURL: scrape.Resolve(base, attachment),
					Meta: map[string]string{
						"row":        rowSelector,
						"title":      titleSelector,
						"date":       dateSelector,
						"attachment": attachmentSelector,
					},
				}
				if opts.FetchDetail && link != "" {
					detailCtx, cancel := context.WithTimeout(ctx, opts.RowTimeout)
					defer cancel()
					detail, detailErr := page.DetailText(detailCtx, link)
					if detailErr != nil {
						result.Warn(step+" detail", detailErr)
					}
					rec.DetailContent = detail
				}
				result.Add(rec)
			}()
		}

		if !opts.FollowPagination || pageNo == opts.MaxPages {
			break
		}
		advanced := false
		for _, sel := range paginationSelectors {
			moved, nextErr := page.Next(ctx, sel)
			if nextErr != nil {
				result.Warn(fmt.Sprintf("page %d next", pageNo), nextErr)
				continue
			}
			if moved {
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return result, nil
}
`
