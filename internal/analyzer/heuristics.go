package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudflare/ahocorasick"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/pkg/scrape"
)

const (
	minTableRows = 2
	minListItems = 3
	minRepeats   = 3
)

var (
	identifier   = regexp.MustCompile(`^[A-Za-z_][\w-]*$`)
	titleWords   = regexp.MustCompile(`(?i)(title|subject|tit|제목|제 목)`)
	dateWords    = regexp.MustCompile(`(?i)(date|작성일|등록일|게시일|날짜)`)
	attachWords  = regexp.MustCompile(`(?i)(download|filedown|attach|첨부)`)
	attachExts   = regexp.MustCompile(`(?i)\.(pdf|hwpx?|docx?|xlsx?|zip)(\?|$)`)
	nextLabel    = regexp.MustCompile(`(?i)^(다음|다음\s*페이지|next|next\s*page|›|»|>)$`)
	nextClass    = regexp.MustCompile(`(?i)\bnext\b|\bbtn_next\b|\bpg_next\b`)
	unsafeInAttr = regexp.MustCompile(`["\\\n]`)

	titleHeaders = newVocabulary("title", "subject", "제목")
	dateHeaders  = newVocabulary("date", "작성일", "등록일", "게시일", "날짜")
)

// vocabulary matches column header text against a keyword set in one pass.
// Text is lowercased with whitespace removed, so "제 목" hits "제목".
type vocabulary struct {
	matcher *ahocorasick.Matcher
}

func newVocabulary(words ...string) vocabulary {
	return vocabulary{matcher: ahocorasick.NewStringMatcher(words)}
}

func (v vocabulary) matches(text string) bool {
	key := strings.ToLower(strings.Join(strings.Fields(text), ""))
	if key == "" {
		return false
	}
	return len(v.matcher.Match([]byte(key))) > 0
}

// selectorFor names s by tag plus id, or tag plus first usable class.
func selectorFor(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && identifier.MatchString(id) {
		return tag + "#" + id
	}
	if cls := firstClass(s, nil); cls != "" {
		return tag + "." + cls
	}
	return tag
}

// firstClass returns the first valid class, preferring one matching prefer.
func firstClass(s *goquery.Selection, prefer *regexp.Regexp) string {
	class, _ := s.Attr("class")
	fields := strings.Fields(class)
	if prefer != nil {
		for _, c := range fields {
			if identifier.MatchString(c) && prefer.MatchString(c) {
				return c
			}
		}
	}
	for _, c := range fields {
		if identifier.MatchString(c) {
			return c
		}
	}
	return ""
}

func hasLink(s *goquery.Selection) bool {
	return s.Find("a[href]").Length() > 0
}

func inChrome(s *goquery.Selection) bool {
	return s.Closest("nav, header, footer").Length() > 0
}

// discoverRows finds repeated link-bearing containers: table rows, list items
// and classed siblings, ranked by how many links they hold.
func discoverRows(s *scan) Candidate {
	if s.rowDone {
		return s.rowCand
	}
	sc := newScored()
	tableSel := map[string]bool{}

	s.doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		rows, suffix := t.Find("tbody tr"), " tbody tr"
		if rows.Length() == 0 {
			rows, suffix = t.Find("tr"), " tr"
		}
		linked := rows.FilterFunction(func(_ int, r *goquery.Selection) bool { return hasLink(r) })
		if linked.Length() < minTableRows {
			return
		}
		sel := selectorFor(t) + suffix
		tableSel[sel] = true
		sc.add(sel, float64(linked.Length())+0.5, tableConfidence, linked.First().Text())
	})

	s.doc.Find("ul, ol").Each(func(_ int, l *goquery.Selection) {
		if inChrome(l) {
			return
		}
		items := l.ChildrenFiltered("li").FilterFunction(func(_ int, li *goquery.Selection) bool { return hasLink(li) })
		if items.Length() < minListItems {
			return
		}
		sc.add(selectorFor(l)+" li", float64(items.Length()), listConfidence, items.First().Text())
	})

	s.doc.Find("div, section").Each(func(_ int, parent *goquery.Selection) {
		if inChrome(parent) {
			return
		}
		counts := map[string]int{}
		first := map[string]*goquery.Selection{}
		parent.ChildrenFiltered("div[class], article[class], dl[class]").Each(func(_ int, child *goquery.Selection) {
			if !hasLink(child) {
				return
			}
			cls := firstClass(child, nil)
			if cls == "" {
				return
			}
			key := goquery.NodeName(child) + "." + cls
			counts[key]++
			if first[key] == nil {
				first[key] = child
			}
		})
		keys := make([]string, 0, len(counts))
		for key := range counts {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if n := counts[key]; n >= minRepeats {
				sc.add(key, float64(n)-0.5, repeatConfidence, first[key].Text())
			}
		}
	})

	c := sc.candidate()
	if len(c.Selectors) > 0 {
		s.rowSel = c.Selectors[0]
		s.inTable = tableSel[s.rowSel]
	}
	s.rowDone, s.rowCand = true, c
	return c
}

// headerColumn returns the 1-based column whose header text is in words.
func headerColumn(doc *goquery.Document, words vocabulary) int {
	col := 0
	doc.Find("table th, table thead td").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if words.matches(th.Text()) {
			col = th.Index() + 1
			return false
		}
		return true
	})
	return col
}

func discoverTitles(s *scan) Candidate {
	sc := newScored()
	rows := s.rows()

	if col := headerColumn(s.doc, titleHeaders); col > 0 && s.usesTable() {
		sel := "td:nth-child(" + strconv.Itoa(col) + ") a"
		if rows.Find(sel).Length() > 0 {
			sc.add(sel, float64(rows.Length())+1, headerConfidence, rows.Find(sel).First().Text())
		}
	}

	rows.Find("[class]").Each(func(_ int, el *goquery.Selection) {
		cls := firstClass(el, titleWords)
		if cls == "" || !titleWords.MatchString(cls) {
			return
		}
		tag := goquery.NodeName(el)
		switch {
		case tag == "a":
			sc.add("a."+cls, 1, classConfidence, el.Text())
		case hasLink(el):
			sc.add(tag+"."+cls+" a", 1, classConfidence, el.Find("a[href]").First().Text())
		}
	})

	if sc.best == 0 {
		rows.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			if scrape.Clean(a.Text()) == "" {
				return
			}
			parent := a.Parent()
			sel := goquery.NodeName(parent) + " a"
			if cls := firstClass(parent, nil); cls != "" {
				sel = goquery.NodeName(parent) + "." + cls + " a"
			}
			sc.add(sel, 1, patternConfidence, a.Text())
		})
	}
	return sc.candidate()
}

func discoverDates(s *scan) Candidate {
	sc := newScored()
	rows := s.rows()

	if col := headerColumn(s.doc, dateHeaders); col > 0 && s.usesTable() {
		sel := "td:nth-child(" + strconv.Itoa(col) + ")"
		if text := rows.Find(sel).First().Text(); scrape.FindDate(text) != "" {
			sc.add(sel, float64(rows.Length())+1, headerConfidence, text)
		}
	}

	rows.Find("td, span, div, p, time, em, li, dd").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		text := scrape.Clean(el.Text())
		if scrape.FindDate(text) == "" {
			return
		}
		tag := goquery.NodeName(el)
		switch cls := firstClass(el, dateWords); {
		case cls != "":
			sc.add(tag+"."+cls, 1, classConfidence, text)
		case tag == "td":
			sc.add("td:nth-child("+strconv.Itoa(el.Index()+1)+")", 1, patternConfidence, text)
		default:
			sc.add(tag, 0.5, patternConfidence, text)
		}
	})
	return sc.candidate()
}

func discoverAttachments(s *scan) Candidate {
	sc := newScored()
	s.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := scrape.Clean(a.Text())
		if m := attachExts.FindStringSubmatch(href); m != nil {
			sc.add(`a[href*=".`+strings.ToLower(m[1])+`"]`, 1, classConfidence, href)
		}
		if m := attachWords.FindString(href); m != "" {
			sc.add(`a[href*="`+m+`"]`, 1, classConfidence, href)
		}
		if cls := firstClass(a, attachWords); cls != "" && attachWords.MatchString(cls) {
			sc.add("a."+cls, 1, classConfidence, text)
		}
	})
	return sc.candidate()
}

func discoverPagination(s *scan) Candidate {
	sc := newScored()
	s.doc.Find("a, button").Each(func(_ int, el *goquery.Selection) {
		label := scrape.Clean(el.Text())
		if label == "" {
			label, _ = el.Find("img").Attr("alt")
			label = scrape.Clean(label)
		}
		title, _ := el.Attr("title")
		aria, _ := el.Attr("aria-label")
		cls := firstClass(el, nextClass)
		isNext := nextLabel.MatchString(label) ||
			nextLabel.MatchString(scrape.Clean(title)) ||
			nextLabel.MatchString(scrape.Clean(aria)) ||
			(cls != "" && nextClass.MatchString(cls))
		if !isNext {
			return
		}

		tag := goquery.NodeName(el)
		switch {
		case cls != "":
			sc.add(tag+"."+cls, 2, classConfidence, label)
		case title != "" && !unsafeInAttr.MatchString(title):
			sc.add(tag+`[title="`+title+`"]`, 1, patternConfidence, label)
		case aria != "" && !unsafeInAttr.MatchString(aria):
			sc.add(tag+`[aria-label="`+aria+`"]`, 1, patternConfidence, label)
		default:
			if pcls := firstClass(el.Parent(), nil); pcls != "" {
				sc.add(goquery.NodeName(el.Parent())+"."+pcls+" "+tag+":last-child", 0.5, patternConfidence, label)
			}
		}
	})
	return sc.candidate()
}
