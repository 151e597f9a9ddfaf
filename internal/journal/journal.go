// Package journal is the append-only operational log shared by concurrent
// pipeline runs.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

// DefaultStream is the Redis stream runs are appended to.
const DefaultStream = "boardsynth:runs"

// EventType tags an Event.
type EventType string

const (
	EventTransition EventType = "transition"
	EventHistory    EventType = "history"
	EventOutcome    EventType = "outcome"
	// EventRetry marks a REGENERATE cycle that reran the previous module
	// without synthesizing a new one.
	EventRetry EventType = "retry"
)

// Event is one journal line.
type Event struct {
	ID      string               `json:"id"`
	RunID   string               `json:"run_id"`
	Board   string               `json:"board"`
	Type    EventType            `json:"type"`
	At      time.Time            `json:"at"`
	From    domain.State         `json:"from,omitempty"`
	To      domain.State         `json:"to,omitempty"`
	Summary string               `json:"summary,omitempty"`
	Entry   *domain.HistoryEntry `json:"entry,omitempty"`
}

func (e *Event) stamp() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
}

// Redis appends events to a stream with XADD.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
	log    logger.Logger
}

// NewRedis returns a stream journal. Returns nil if client is nil.
func NewRedis(client *redis.Client, stream string, maxLen int64, log logger.Logger) *Redis {
	if client == nil {
		return nil
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &Redis{client: client, stream: stream, maxLen: maxLen, log: log}
}

// Append writes e to the stream. A nil journal is a no-op.
func (j *Redis) Append(ctx context.Context, e Event) error {
	if j == nil || j.client == nil {
		return nil
	}
	e.stamp()

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: j.stream,
		Values: map[string]any{
			"run_id": e.RunID,
			"type":   string(e.Type),
			"event":  string(payload),
		},
	}
	if j.maxLen > 0 {
		args.MaxLen = j.maxLen
		args.Approx = true
	}
	if err := j.client.XAdd(ctx, args).Err(); err != nil {
		j.log.Error("Failed to append journal event",
			logger.RunID(e.RunID),
			logger.String("type", string(e.Type)),
			logger.Error(err),
		)
		return fmt.Errorf("append to stream: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (j *Redis) Recent(ctx context.Context, n int64) ([]Event, error) {
	if j == nil || j.client == nil {
		return nil, nil
	}
	msgs, err := j.client.XRevRangeN(ctx, j.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["event"].(string)
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			j.log.Warn("Skipping unreadable journal event", logger.String("stream_id", m.ID), logger.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the Redis client.
func (j *Redis) Close() error {
	if j == nil || j.client == nil {
		return nil
	}
	return j.client.Close()
}

// Log writes events to a logger when no stream is configured.
type Log struct {
	log logger.Logger
}

// NewLog returns a logger-backed journal.
func NewLog(log logger.Logger) *Log {
	return &Log{log: log}
}

// Append logs e. Transitions log at Debug, everything else at Info.
func (j *Log) Append(_ context.Context, e Event) error {
	e.stamp()
	fields := []logger.Field{
		logger.RunID(e.RunID),
		logger.Board(e.Board),
		logger.String("type", string(e.Type)),
	}
	if e.From != "" {
		fields = append(fields, logger.State("from", string(e.From)))
	}
	if e.To != "" {
		fields = append(fields, logger.State("to", string(e.To)))
	}
	if e.Summary != "" {
		fields = append(fields, logger.String("summary", e.Summary))
	}
	if e.Type == EventTransition {
		j.log.Debug("Journal", fields...)
		return nil
	}
	j.log.Info("Journal", fields...)
	return nil
}
