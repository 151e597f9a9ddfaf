package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/analyzer"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/journal"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/service"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBatchBoards   = 100
)

// Service is what the handlers call into.
type Service interface {
	Synthesize(ctx context.Context, board domain.BoardSource) (*service.Result, error)
	SynthesizeAll(ctx context.Context, boards []domain.BoardSource, concurrency int) ([]pipeline.BatchResult, error)
	Analyze(ctx context.Context, board domain.BoardSource) (analyzer.Report, error)
	Module(ctx context.Context, boardName string) (*storage.StoredModule, error)
	Modules(ctx context.Context, successOnly bool, limit int) ([]*storage.StoredModule, error)
	Recent(ctx context.Context, n int64) ([]journal.Event, error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// BatchRequest is the body of POST /api/v1/boards/batch.
type BatchRequest struct {
	Boards      []domain.BoardSource `json:"boards"`
	Concurrency int                  `json:"concurrency"`
}

// BatchItem is one board of a batch response.
type BatchItem struct {
	Board   string            `json:"board"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Handler serves the board synthesis endpoints.
type Handler struct {
	svc Service
}

// NewHandler returns a Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Synthesize runs the pipeline for one board and returns its outcome. An
// exhausted run is still a 200; callers read success from the body.
func (h *Handler) Synthesize(c *gin.Context) {
	var board domain.BoardSource
	if err := c.ShouldBindJSON(&board); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}

	res, err := h.svc.Synthesize(c.Request.Context(), board)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Analyze returns selector candidates without synthesizing.
func (h *Handler) Analyze(c *gin.Context) {
	var board domain.BoardSource
	if err := c.ShouldBindJSON(&board); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}

	report, err := h.svc.Analyze(c.Request.Context(), board)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Batch runs several boards concurrently.
func (h *Handler) Batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}
	if len(req.Boards) == 0 || len(req.Boards) > maxBatchBoards {
		c.JSON(http.StatusBadRequest, errorBody{
			Error: "boards must hold between 1 and " + strconv.Itoa(maxBatchBoards) + " entries",
			Code:  "INVALID_BODY",
		})
		return
	}

	results, _ := h.svc.SynthesizeAll(c.Request.Context(), req.Boards, req.Concurrency)
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = BatchItem{Board: r.Board.Name, Outcome: r.Outcome}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// Module returns the stored module for a board.
func (h *Handler) Module(c *gin.Context) {
	row, err := h.svc.Module(c.Request.Context(), c.Param("board"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Modules lists stored modules. Query: success=true, limit=N.
func (h *Handler) Modules(c *gin.Context) {
	limit := queryLimit(c)
	successOnly, _ := strconv.ParseBool(c.Query("success"))

	rows, err := h.svc.Modules(c.Request.Context(), successOnly, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": rows, "count": len(rows)})
}

// Journal returns the newest run journal events.
func (h *Handler) Journal(c *gin.Context) {
	events, err := h.svc.Recent(c.Request.Context(), int64(queryLimit(c)))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// fail maps service errors to status codes. The request logger reports
// the error itself.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrInvalidBoard):
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_BOARD"})
	case errors.Is(err, storage.ErrModuleNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, service.ErrStoreDisabled), errors.Is(err, service.ErrJournalDisabled):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "UNAVAILABLE"})
	default:
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "INTERNAL_ERROR"})
	}
}
