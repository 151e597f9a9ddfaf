package domain

// Field names a SelectorSet candidate list.
type Field string

const (
	FieldRows        Field = "rows"
	FieldTitles      Field = "titles"
	FieldDates       Field = "dates"
	FieldAttachments Field = "attachments"
	FieldPagination  Field = "pagination"
)

// Fields lists every selector field in the order synthesized code consumes them.
var Fields = []Field{FieldRows, FieldTitles, FieldDates, FieldAttachments, FieldPagination}

// SelectorSet holds ordered candidate selectors per field. Earlier candidates
// are tried first by synthesized code.
type SelectorSet struct {
	Rows        []string `json:"rows"        yaml:"rows"`
	Titles      []string `json:"titles"      yaml:"titles"`
	Dates       []string `json:"dates"       yaml:"dates"`
	Attachments []string `json:"attachments" yaml:"attachments"`
	Pagination  []string `json:"pagination"  yaml:"pagination"`
	UsesTable   bool     `json:"uses_table"  yaml:"uses_table"`
}

// Get returns the candidate list for f.
func (s SelectorSet) Get(f Field) []string {
	switch f {
	case FieldRows:
		return s.Rows
	case FieldTitles:
		return s.Titles
	case FieldDates:
		return s.Dates
	case FieldAttachments:
		return s.Attachments
	case FieldPagination:
		return s.Pagination
	}
	return nil
}

// Set replaces the candidate list for f.
func (s *SelectorSet) Set(f Field, list []string) {
	switch f {
	case FieldRows:
		s.Rows = list
	case FieldTitles:
		s.Titles = list
	case FieldDates:
		s.Dates = list
	case FieldAttachments:
		s.Attachments = list
	case FieldPagination:
		s.Pagination = list
	}
}

// Head returns the first candidate for f, or "" when the list is empty.
func (s SelectorSet) Head(f Field) string {
	if l := s.Get(f); len(l) > 0 {
		return l[0]
	}
	return ""
}

// Clone returns a deep copy so snapshots never alias a mutated set.
func (s SelectorSet) Clone() SelectorSet {
	out := SelectorSet{UsesTable: s.UsesTable}
	for _, f := range Fields {
		out.Set(f, append([]string(nil), s.Get(f)...))
	}
	return out
}

// Merge returns head followed by tail with duplicates and blanks removed,
// keeping first occurrence order.
func Merge(head, tail []string) []string {
	seen := make(map[string]struct{}, len(head)+len(tail))
	out := make([]string, 0, len(head)+len(tail))
	for _, group := range [][]string{head, tail} {
		for _, s := range group {
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
