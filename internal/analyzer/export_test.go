package analyzer

import "github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"

// BreakHeuristic makes the heuristic for f panic.
func (a *Analyzer) BreakHeuristic(f domain.Field) {
	a.heuristics[f] = func(*scan) Candidate { panic("broken heuristic") }
}

// HeaderMatches reports whether text names a title or date column.
func HeaderMatches(text string) (title, date bool) {
	return titleHeaders.matches(text), dateHeaders.matches(text)
}
