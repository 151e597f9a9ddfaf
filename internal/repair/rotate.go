// Package repair holds both repair tiers: selector rotation after a static
// failure and service-assisted diagnosis after a live failure.
package repair

import (
	"strings"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
)

// Rotate moves the head candidate of every field with more than one candidate
// to its tail. The input set is not modified.
func Rotate(set domain.SelectorSet) domain.SelectorSet {
	out := set.Clone()
	for _, f := range domain.Fields {
		list := out.Get(f)
		if len(list) <= 1 {
			continue
		}
		rotated := make([]string, 0, len(list))
		rotated = append(rotated, list[1:]...)
		rotated = append(rotated, list[0])
		out.Set(f, rotated)
	}
	return out
}

// ApplySuggestions returns set with the proposal's suggested selectors ahead
// of the existing candidates. Unknown field keys are ignored.
func ApplySuggestions(set domain.SelectorSet, p *domain.RepairProposal) domain.SelectorSet {
	if p == nil || len(p.SuggestedSelectors) == 0 {
		return set
	}
	out := set.Clone()
	for key, suggested := range p.SuggestedSelectors {
		f, ok := fieldFor(key)
		if !ok || len(suggested) == 0 {
			continue
		}
		out.Set(f, domain.Merge(suggested, out.Get(f)))
	}
	return out
}

// fieldFor accepts "rows", "rowSelectors", "row_selectors" and the like.
func fieldFor(key string) (domain.Field, bool) {
	k := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	k = strings.TrimSuffix(k, "selectors")
	switch {
	case strings.HasPrefix(k, "row"):
		return domain.FieldRows, true
	case strings.HasPrefix(k, "title"):
		return domain.FieldTitles, true
	case strings.HasPrefix(k, "date"):
		return domain.FieldDates, true
	case strings.HasPrefix(k, "attach"):
		return domain.FieldAttachments, true
	case strings.HasPrefix(k, "pagination"), strings.HasPrefix(k, "next"), strings.HasPrefix(k, "paging"):
		return domain.FieldPagination, true
	}
	return "", false
}

// ErrorContext packages a failed live attempt for the next synthesis.
func ErrorContext(attempt int, errs []domain.StepError, p *domain.RepairProposal) *domain.ErrorContext {
	return &domain.ErrorContext{
		Attempt:  attempt,
		Errors:   append([]domain.StepError(nil), errs...),
		Proposal: p,
	}
}
