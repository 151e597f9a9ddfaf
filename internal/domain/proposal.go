package domain

// Fix is one prioritized remedy suggested by the repair service.
type Fix struct {
	Priority   int    `json:"priority"              mapstructure:"priority"`
	Issue      string `json:"issue"                 mapstructure:"issue"`
	Solution   string `json:"solution"              mapstructure:"solution"`
	LineNumber *int   `json:"line_number,omitempty" mapstructure:"line_number"`
}

// RepairProposal is advisory context for the next synthesis; it is never applied as a patch.
type RepairProposal struct {
	RootCause          string              `json:"root_cause"                    mapstructure:"root_cause"`
	Fixes              []Fix               `json:"fixes"                         mapstructure:"fixes"`
	RegenerateNeeded   bool                `json:"regenerate_needed"             mapstructure:"regenerate_needed"`
	SuggestedSelectors map[string][]string `json:"suggested_selectors,omitempty" mapstructure:"suggested_selectors"`
}
