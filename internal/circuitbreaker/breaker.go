// Package circuitbreaker stops calling a failing external service for a while
// so that a run burns one attempt instead of hanging on repeated timeouts.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without calling through while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// State of a breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config sets thresholds. Zero values fall back to 5 failures, 1 probe success
// and a 30s cool-down.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	// OnStateChange is invoked outside the lock.
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

// Breaker guards one named dependency.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New returns a closed breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State returns the current state, promoting Open to HalfOpen once the
// cool-down elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Execute runs fn unless the breaker is open. fn's error counts as a failure;
// ignore lets callers exclude errors that say nothing about service health.
func (b *Breaker) Execute(fn func() error, ignore func(error) bool) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	if err != nil && ignore != nil && ignore(err) {
		return err
	}
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil
	}
	wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
	if wait > 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s retries in %s", ErrOpen, b.name, wait.Round(time.Millisecond))
	}
	notify := b.move(HalfOpen)
	b.mu.Unlock()
	notify()
	return nil
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	notify := func() {}
	switch {
	case ok && b.state == HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			notify = b.move(Closed)
		}
	case ok:
		b.failures = 0
	case b.state == HalfOpen:
		notify = b.move(Open)
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			notify = b.move(Open)
		}
	}
	b.mu.Unlock()
	notify()
}

// move must be called with mu held; the returned func fires the callback.
func (b *Breaker) move(to State) func() {
	from := b.state
	b.state = to
	b.failures, b.successes = 0, 0
	if to == Open {
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange == nil || from == to {
		return func() {}
	}
	cb, name := b.cfg.OnStateChange, b.name
	return func() { cb(name, from, to) }
}
