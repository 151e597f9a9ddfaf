package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_AppendAndRecent(t *testing.T) {
	t.Parallel()

	_, client := newRedis(t)
	j := journal.NewRedis(client, "", 0, logger.NewNop())
	ctx := context.Background()

	diags := domain.Diagnostics{{Message: "expected operand", Attempt: 0, Line: 20}}
	require.NoError(t, j.Append(ctx, journal.Event{
		RunID: "run-1", Board: "Ulsan", Type: journal.EventTransition,
		From: domain.StateAnalyze, To: domain.StateSynthesize,
	}))
	require.NoError(t, j.Append(ctx, journal.Event{
		RunID: "run-1", Board: "Ulsan", Type: journal.EventHistory,
		Entry: &domain.HistoryEntry{Kind: domain.EntryDiagnostics, State: domain.StateStaticValidate, Diagnostics: diags},
	}))

	n, err := client.XLen(ctx, journal.DefaultStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, journal.EventHistory, events[0].Type)
	require.NotNil(t, events[0].Entry)
	assert.Equal(t, diags, events[0].Entry.Diagnostics)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].At.IsZero())

	assert.Equal(t, domain.StateSynthesize, events[1].To)
}

func TestRedis_AppendFailsWhenServerGone(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	j := journal.NewRedis(client, "runs", 100, logger.NewNop())
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := j.Append(ctx, journal.Event{RunID: "run-2", Type: journal.EventOutcome})
	assert.Error(t, err)
}

func TestRedis_NilIsNoop(t *testing.T) {
	t.Parallel()

	j := journal.NewRedis(nil, "", 0, logger.NewNop())
	assert.Nil(t, j)
	assert.NoError(t, j.Append(context.Background(), journal.Event{}))
	events, err := j.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, j.Close())
}

func TestLog_Append(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	j := journal.NewLog(logger.NewWithCore(core))

	require.NoError(t, j.Append(context.Background(), journal.Event{
		RunID: "run-3", Board: "Jeju", Type: journal.EventOutcome,
		To: domain.StateDoneExhausted, Summary: "static=3 live=0",
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "run-3", ctxMap["run_id"])
	assert.Equal(t, "DONE_EXHAUSTED", ctxMap["to"])
}
