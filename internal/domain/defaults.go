package domain

// DefaultSelectors returns the generic candidates every field falls back to.
// Synthesized code appends the same lists after the analyzed head candidate.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		Rows: []string{
			"table tbody tr",
			"table tr",
			"ul.board-list li",
			".board_list li",
			".bbs-list li",
			"div.list-item",
			"ul li",
		},
		Titles: []string{
			"td.subject a",
			"td.title a",
			"td.tit a",
			".subject a",
			".title a",
			".tit a",
			"a",
		},
		Dates: []string{
			"td.date",
			".date",
			"td.reg_date",
			".regdate",
			"span.date",
			"time",
		},
		Attachments: []string{
			`a[href*="download"]`,
			`a[href*="fileDown"]`,
			`a[href$=".pdf"]`,
			`a[href$=".hwp"]`,
			".file a",
			".attach a",
		},
		Pagination: []string{
			"a.next",
			".pagination .next",
			".paging .next",
			`a[rel="next"]`,
			`a[title*="다음"]`,
		},
	}
}
