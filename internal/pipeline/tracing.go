package pipeline

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
)

// TracerName names the tracer used when Deps.Tracer is nil.
const TracerName = "github.com/nomadcgrang9/SellmeBuyme-sub004/pipeline"

func defaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// runSpan starts the span covering one board from ANALYZE to a terminal state.
// Caller is responsible for calling span.End().
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (c *Controller) runSpan(ctx context.Context, run *Run) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("board.name", run.Board.Name),
			attribute.String("board.url", run.Board.URL),
			attribute.Int("budget.static", run.MaxStaticAttempts),
			attribute.Int("budget.live", run.MaxLiveAttempts),
		),
	)
}

// stepSpan starts the span for the work done in state.
// Caller is responsible for calling span.End().
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (c *Controller) stepSpan(ctx context.Context, run *Run) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "pipeline."+strings.ToLower(string(run.State)),
		trace.WithAttributes(
			attribute.Int("attempt.static", run.StaticAttempt),
			attribute.Int("attempt.live", run.LiveAttempt),
		),
	)
}

// endRun records the outcome on span and ends it.
func endRun(span trace.Span, out *Outcome, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("run.state", string(out.State)),
		attribute.Int("attempts.static", out.Attempts.Static),
		attribute.Int("attempts.live", out.Attempts.Live),
		attribute.Int("records", len(out.Records)),
	)
	if out.State == domain.StateDoneExhausted {
		span.SetStatus(codes.Error, "repair budget exhausted")
		return
	}
	span.SetStatus(codes.Ok, "")
}
