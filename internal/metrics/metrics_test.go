package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/llm"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/metrics"
)

var _ llm.Recorder = (*metrics.Metrics)(nil)

func TestMetrics_RunLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RunStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsInFlight), 0)

	m.Transition(domain.StateAnalyze, domain.StateSynthesize)
	m.Transition(domain.StateAnalyze, domain.StateSynthesize)
	m.RunFinished(domain.StateDoneSuccess, 1, 0, 7, 3*time.Second)

	assert.InDelta(t, 0, testutil.ToFloat64(m.RunsInFlight), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("DONE_SUCCESS")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("ANALYZE", "SYNTHESIZE")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "boardsynth_pipeline_static_attempts")
	assert.Contains(t, names, "boardsynth_pipeline_records_collected")
}

func TestMetrics_LLMCall(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.LLMCall("anthropic", "ok", 200*time.Millisecond)
	m.LLMCall("anthropic", "error", time.Second)
	m.LLMCall("anthropic", "ok", 100*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("anthropic", "ok")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.LLMCallDuration))
}
