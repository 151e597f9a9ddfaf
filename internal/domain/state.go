package domain

// State is a pipeline controller state.
type State string

const (
	StateAnalyze        State = "ANALYZE"
	StateSynthesize     State = "SYNTHESIZE"
	StateStaticValidate State = "STATIC_VALIDATE"
	StateRepairStatic   State = "REPAIR_STATIC"
	StateLiveTest       State = "LIVE_TEST"
	StateAnalyzeError   State = "ANALYZE_ERROR"
	StateRegenerate     State = "REGENERATE"
	StateDoneSuccess    State = "DONE_SUCCESS"
	StateDoneExhausted  State = "DONE_EXHAUSTED"
)

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s == StateDoneSuccess || s == StateDoneExhausted
}

// allowed enumerates every legal edge of the controller.
var allowed = map[State][]State{
	StateAnalyze:        {StateSynthesize},
	StateSynthesize:     {StateStaticValidate},
	StateStaticValidate: {StateRepairStatic, StateLiveTest, StateDoneExhausted},
	StateRepairStatic:   {StateSynthesize},
	StateLiveTest:       {StateDoneSuccess, StateAnalyzeError, StateDoneExhausted},
	StateAnalyzeError:   {StateRegenerate},
	StateRegenerate:     {StateLiveTest},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
