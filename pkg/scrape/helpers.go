package scrape

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	fullDate  = regexp.MustCompile(`\d{4}[-./]\d{1,2}[-./]\d{1,2}`)
	shortDate = regexp.MustCompile(`\b\d{2}[-./]\d{2}[-./]\d{2}\b`)
	spaces    = regexp.MustCompile(`\s+`)
)

// Clean collapses whitespace runs and trims.
func Clean(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// FindDate returns the first date-looking substring of s, or "".
func FindDate(s string) string {
	if m := fullDate.FindString(s); m != "" {
		return m
	}
	return shortDate.FindString(s)
}

// Resolve makes href absolute against base. Unparsable input is returned as is.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// FirstText returns the first non-empty text among elements matched by
// selectors inside el, along with the selector that produced it.
func FirstText(el Element, selectors []string) (string, string) {
	for _, sel := range selectors {
		found, err := el.FindAll(sel)
		if err != nil {
			continue
		}
		for _, f := range found {
			text, err := f.Text()
			if err != nil {
				continue
			}
			if text = Clean(text); text != "" {
				return text, sel
			}
		}
	}
	return "", ""
}

// FirstAttr is FirstText for an attribute value.
func FirstAttr(el Element, selectors []string, attr string) (string, string) {
	for _, sel := range selectors {
		found, err := el.FindAll(sel)
		if err != nil {
			continue
		}
		for _, f := range found {
			v, err := f.Attr(attr)
			if err != nil {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				return v, sel
			}
		}
	}
	return "", ""
}

// FirstLink walks selectors inside row and returns the first title with its
// link target. The href is taken from the matched element or its first anchor.
func FirstLink(row Element, selectors []string) (title, href, matched string, err error) {
	for _, sel := range selectors {
		found, ferr := row.FindAll(sel)
		if ferr != nil || len(found) == 0 {
			continue
		}
		for _, el := range found {
			text, terr := el.Text()
			if terr != nil {
				continue
			}
			if text = Clean(text); text == "" {
				continue
			}
			link := linkOf(el)
			if link == "" {
				if title == "" {
					title, matched = text, sel
				}
				continue
			}
			return text, link, sel, nil
		}
	}
	if title == "" {
		return "", "", "", ErrMissingTitle
	}
	return title, "", matched, ErrMissingLink
}

// AnchorTitle falls back to the first anchor in row carrying both text and href.
func AnchorTitle(row Element) (string, string, error) {
	anchors, err := row.FindAll("a[href]")
	if err != nil {
		return "", "", err
	}
	for _, a := range anchors {
		text, _ := a.Text()
		href, _ := a.Attr("href")
		if text = Clean(text); text != "" && !skippableHref(href) {
			return text, strings.TrimSpace(href), nil
		}
	}
	return "", "", ErrMissingTitle
}

func linkOf(el Element) string {
	if href, _ := el.Attr("href"); !skippableHref(href) {
		return strings.TrimSpace(href)
	}
	anchors, err := el.FindAll("a")
	if err != nil {
		return ""
	}
	for _, a := range anchors {
		if href, _ := a.Attr("href"); !skippableHref(href) {
			return strings.TrimSpace(href)
		}
	}
	return ""
}

func skippableHref(href string) bool {
	h := strings.TrimSpace(href)
	return h == "" || h == "#" || strings.HasPrefix(strings.ToLower(h), "javascript:void")
}
