package synth

import "time"

func (s *Synthesizer) SetClock(now func() time.Time) { s.now = now }
