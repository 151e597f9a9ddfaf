package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/circuitbreaker"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/retry"
)

// Resilient retries transient failures of an inner Client and trips a
// breaker when the service keeps failing.
type Resilient struct {
	inner   Client
	retry   retry.Config
	breaker *circuitbreaker.Breaker
	limiter *rate.Limiter
	rec     Recorder
	log     logger.Logger
}

// NewResilient wraps inner. rec may be nil. A zero RateLimit leaves calls
// unthrottled; otherwise RateLimit is requests per second.
func NewResilient(inner Client, cfg Config, rec Recorder, log logger.Logger) *Resilient {
	bc := cfg.Breaker
	bc.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn("LLM circuit breaker changed state",
			logger.String("provider", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Resilient{
		inner:   inner,
		retry:   cfg.Retry,
		breaker: circuitbreaker.New(inner.Name(), bc),
		limiter: rate.NewLimiter(limit, burst),
		rec:     rec,
		log:     log,
	}
}

func (r *Resilient) Name() string { return r.inner.Name() }

func (r *Resilient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	text, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
		var out string
		err := r.breaker.Execute(func() error {
			var callErr error
			out, callErr = r.inner.CompleteWithSystem(ctx, system, user)
			return callErr
		}, isCallerError)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return "", retry.Permanent(err)
		}
		return out, err
	})

	result := "ok"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = "breaker_open"
	case err != nil:
		result = "error"
	}
	if r.rec != nil {
		r.rec.LLMCall(r.inner.Name(), result, time.Since(start))
	}
	if err != nil {
		r.log.Warn("LLM call failed",
			logger.String("provider", r.inner.Name()),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
	}
	return text, err
}

// isCallerError keeps cancellations and empty answers from tripping the breaker.
func isCallerError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, system, user string) (string, error)

func (f ClientFunc) Name() string { return "func" }

func (f ClientFunc) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
