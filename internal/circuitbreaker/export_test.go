package circuitbreaker

import "time"

func (b *Breaker) SetClock(now func() time.Time) { b.now = now }
