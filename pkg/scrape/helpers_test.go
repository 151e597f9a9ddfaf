package scrape_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/browser"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

const board = `<table><tbody>
<tr><td class="tit"><a href="view.do?no=7"> 2024학년도  기간제 교사 채용 </a></td><td class="date">2024.03.05</td>
    <td><a href="/files/notice.hwp">첨부</a></td></tr>
<tr><td class="tit">No link here</td><td>24-03-06</td></tr>
<tr><td><a href="#">dead</a><a href="/view.do?no=9">Anchor only</a></td></tr>
</tbody></table>`

func rows(t *testing.T) []scrape.Element {
	t.Helper()
	page, err := browser.NewDocumentPage(board, "https://school.example/board/list.do", nil)
	require.NoError(t, err)
	found, err := page.FindAll(context.Background(), "tbody tr")
	require.NoError(t, err)
	require.Len(t, found, 3)
	return found
}

func TestFirstLink(t *testing.T) {
	t.Parallel()
	r := rows(t)

	title, href, matched, err := scrape.FirstLink(r[0], []string{".missing", "td.tit a"})
	require.NoError(t, err)
	assert.Equal(t, "2024학년도 기간제 교사 채용", title)
	assert.Equal(t, "view.do?no=7", href)
	assert.Equal(t, "td.tit a", matched)

	title, _, _, err = scrape.FirstLink(r[1], []string{"td.tit"})
	require.ErrorIs(t, err, scrape.ErrMissingLink)
	assert.Equal(t, "No link here", title)

	_, _, _, err = scrape.FirstLink(r[2], []string{".tit"})
	require.ErrorIs(t, err, scrape.ErrMissingTitle)
}

func TestAnchorTitle(t *testing.T) {
	t.Parallel()
	r := rows(t)

	title, href, err := scrape.AnchorTitle(r[2])
	require.NoError(t, err)
	assert.Equal(t, "Anchor only", title)
	assert.Equal(t, "/view.do?no=9", href)

	_, _, err = scrape.AnchorTitle(r[1])
	require.ErrorIs(t, err, scrape.ErrMissingTitle)
}

func TestFirstTextAndAttr(t *testing.T) {
	t.Parallel()
	r := rows(t)

	text, sel := scrape.FirstText(r[0], []string{".none", "td.date"})
	assert.Equal(t, "2024.03.05", text)
	assert.Equal(t, "td.date", sel)

	href, sel := scrape.FirstAttr(r[0], []string{`a[href*=".hwp"]`}, "href")
	assert.Equal(t, "/files/notice.hwp", href)
	assert.Equal(t, `a[href*=".hwp"]`, sel)

	text, sel = scrape.FirstText(r[1], []string{".none"})
	assert.Empty(t, text)
	assert.Empty(t, sel)
}

func TestFindDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024.03.05", scrape.FindDate("posted 2024.03.05 by admin"))
	assert.Equal(t, "2024-3-5", scrape.FindDate("2024-3-5"))
	assert.Equal(t, "24-03-06", scrape.FindDate("on 24-03-06"))
	assert.Empty(t, scrape.FindDate("no date"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := "https://school.example/board/list.do?page=1"
	assert.Equal(t, "https://school.example/board/view.do?no=7", scrape.Resolve(base, "view.do?no=7"))
	assert.Equal(t, "https://school.example/files/a.pdf", scrape.Resolve(base, "/files/a.pdf"))
	assert.Equal(t, "https://other.example/x", scrape.Resolve(base, "https://other.example/x"))
	assert.Empty(t, scrape.Resolve(base, "  "))
}

func TestResultAndOptions(t *testing.T) {
	t.Parallel()

	res := scrape.NewResult()
	res.Add(scrape.Record{Title: "a"})
	res.Warn("row 2", scrape.ErrMissingLink)
	res.Warn("row 3", nil)
	assert.Len(t, res.Records, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "row 2: row has no link", res.Warnings[0].String())

	opts := scrape.Options{}.Normalize()
	assert.Equal(t, scrape.DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, 1, opts.MaxPages)

	assert.EqualError(t, scrape.Recovered("boom"), "panic: boom")
}

func TestSymbolsExportEveryEntryPoint(t *testing.T) {
	t.Parallel()

	pkg, ok := scrape.Symbols[scrape.ImportPath+"/scrape"]
	require.True(t, ok)
	for _, name := range []string{"Page", "Element", "Options", "Result", "Record", "NewResult", "FirstLink", "Resolve"} {
		assert.Contains(t, pkg, name)
	}
}
