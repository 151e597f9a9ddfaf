package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
)

func TestNew_DefaultsApply(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Debug("filtered at info")
	l.Info("hello", logger.Board("seoul"), logger.Attempt("live", 2))
}

func TestNewWithCore_WithCarriesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := logger.NewWithCore(core).With(logger.RunID("run-1"))

	l.Warn("row skipped", logger.String("step", "page 1 row 3"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "row skipped", entry.Message)
	assert.Equal(t, "run-1", entry.ContextMap()["run_id"])
	assert.Equal(t, "page 1 row 3", entry.ContextMap()["step"])
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	l := logger.NewWithCore(core)

	ctx := logger.WithContext(context.Background(), l)
	logger.FromContext(ctx).Info("via context")
	assert.Equal(t, 1, logs.Len())

	fb := logger.FromContext(context.Background())
	require.NotNil(t, fb)
	fb.Debug("dropped")
}

func TestNop(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	l.Error("nothing")
	assert.Equal(t, l, l.With(logger.Int("k", 1)))
	assert.NoError(t, l.Sync())
}
