package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/analyzer"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/api"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/metrics"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/service"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
)

type fakeService struct {
	result  *service.Result
	err     error
	stored  map[string]*storage.StoredModule
	events  []journal.Event
	limit   int
	success bool
	panics  bool
}

func (f *fakeService) Synthesize(_ context.Context, b domain.BoardSource) (*service.Result, error) {
	if f.panics {
		panic("boom")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func (f *fakeService) SynthesizeAll(_ context.Context, boards []domain.BoardSource, _ int) ([]pipeline.BatchResult, error) {
	out := make([]pipeline.BatchResult, len(boards))
	var errs []error
	for i, b := range boards {
		out[i] = pipeline.BatchResult{Board: b}
		if err := b.Validate(); err != nil {
			out[i].Err = err
			errs = append(errs, err)
			continue
		}
		out[i].Outcome = f.result.Outcome
	}
	return out, errors.Join(errs...)
}

func (f *fakeService) Analyze(_ context.Context, b domain.BoardSource) (analyzer.Report, error) {
	if err := b.Validate(); err != nil {
		return analyzer.Report{}, err
	}
	return analyzer.Report{Set: domain.SelectorSet{Rows: []string{"table tbody tr"}}}, nil
}

func (f *fakeService) Module(_ context.Context, name string) (*storage.StoredModule, error) {
	if f.stored == nil {
		return nil, service.ErrStoreDisabled
	}
	m, ok := f.stored[name]
	if !ok {
		return nil, storage.ErrModuleNotFound
	}
	return m, nil
}

func (f *fakeService) Modules(_ context.Context, successOnly bool, limit int) ([]*storage.StoredModule, error) {
	f.success, f.limit = successOnly, limit
	out := []*storage.StoredModule{}
	for _, m := range f.stored {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeService) Recent(_ context.Context, n int64) ([]journal.Event, error) {
	f.limit = int(n)
	if f.events == nil {
		return nil, service.ErrJournalDisabled
	}
	return f.events, nil
}

func outcome() *service.Result {
	return &service.Result{
		Outcome: &pipeline.Outcome{
			RunID:    "run-1",
			Board:    "Gwangju",
			Success:  true,
			State:    domain.StateDoneSuccess,
			Attempts: pipeline.Attempts{Static: 1},
			Records:  []domain.Record{{Title: "공고", URL: "https://gen.example/v/1"}},
		},
		Stored: true,
	}
}

func newRouter(svc api.Service, reg prometheus.Gatherer) *gin.Engine {
	return api.NewRouter(svc, reg, false, logger.NewNop())
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(newRouter(&fakeService{}, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := newRouter(&fakeService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("X-Request-ID", "upstream-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "upstream-1", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RunStarted()

	w := do(newRouter(&fakeService{}, reg), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "boardsynth_pipeline_runs_in_flight 1")
}

func TestSynthesize(t *testing.T) {
	router := newRouter(&fakeService{result: outcome()}, nil)

	w := do(router, http.MethodPost, "/api/v1/boards/synthesize",
		`{"name":"Gwangju","url":"https://gen.example/list"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		RunID   string       `json:"run_id"`
		Success bool         `json:"success"`
		State   domain.State `json:"state"`
		Stored  bool         `json:"stored"`
		Records []domain.Record
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.True(t, body.Success)
	assert.True(t, body.Stored)
	assert.Equal(t, domain.StateDoneSuccess, body.State)
	assert.Len(t, body.Records, 1)
}

func TestSynthesize_BadRequests(t *testing.T) {
	router := newRouter(&fakeService{result: outcome()}, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed json", body: `{"name":`, code: "INVALID_BODY"},
		{name: "relative url", body: `{"name":"Gwangju","url":"/list"}`, code: "INVALID_BOARD"},
		{name: "missing name", body: `{"url":"https://gen.example/list"}`, code: "INVALID_BOARD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/v1/boards/synthesize", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestSynthesize_InternalError(t *testing.T) {
	router := newRouter(&fakeService{err: errors.New("controller defect")}, nil)

	w := do(router, http.MethodPost, "/api/v1/boards/synthesize",
		`{"name":"Gwangju","url":"https://gen.example/list"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "controller defect")
}

func TestSynthesize_PanicRecovered(t *testing.T) {
	router := newRouter(&fakeService{panics: true}, nil)

	w := do(router, http.MethodPost, "/api/v1/boards/synthesize",
		`{"name":"Gwangju","url":"https://gen.example/list"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestAnalyze(t *testing.T) {
	router := newRouter(&fakeService{}, nil)

	w := do(router, http.MethodPost, "/api/v1/boards/analyze",
		`{"name":"Gwangju","url":"https://gen.example/list","sampled_markup":"<table></table>"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":["table tbody tr"]`)
}

func TestBatch(t *testing.T) {
	router := newRouter(&fakeService{result: outcome()}, nil)

	w := do(router, http.MethodPost, "/api/v1/boards/batch",
		`{"boards":[{"name":"Gwangju","url":"https://gen.example/list"},{"name":"","url":"x"}],"concurrency":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []api.BatchItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.NotNil(t, body.Results[0].Outcome)
	assert.Empty(t, body.Results[0].Error)
	assert.Nil(t, body.Results[1].Outcome)
	assert.Contains(t, body.Results[1].Error, "invalid board source")

	w = do(router, http.MethodPost, "/api/v1/boards/batch", `{"boards":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModules(t *testing.T) {
	svc := &fakeService{stored: map[string]*storage.StoredModule{
		"Gwangju": {BoardName: "Gwangju", FunctionName: "CrawlGwangju", Success: true},
	}}
	router := newRouter(svc, nil)

	w := do(router, http.MethodGet, "/api/v1/modules/Gwangju", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"function_name":"CrawlGwangju"`)

	w = do(router, http.MethodGet, "/api/v1/modules/Busan", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/v1/modules?success=true&limit=9000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.success)
	assert.Equal(t, 500, svc.limit)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestDisabledStoreAndJournal(t *testing.T) {
	router := newRouter(&fakeService{}, nil)

	w := do(router, http.MethodGet, "/api/v1/modules/Gwangju", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(router, http.MethodGet, "/api/v1/journal", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestJournal(t *testing.T) {
	svc := &fakeService{events: []journal.Event{
		{RunID: "run-1", Type: journal.EventOutcome, Summary: "static=0 live=0 records=1"},
	}}
	router := newRouter(svc, nil)

	w := do(router, http.MethodGet, "/api/v1/journal?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)
	assert.Contains(t, w.Body.String(), "records=1")
}
