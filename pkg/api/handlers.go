package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/reader"
	"github.com/aquilhq/actionlog/pkg/reconciler"
	"github.com/aquilhq/actionlog/pkg/writer"
)

// ActionWriter is the write coordinator surface the API calls.
type ActionWriter interface {
	Write(ctx context.Context, req *writer.Request) (*writer.Result, error)
}

// LogReader is the read surface the API calls.
type LogReader interface {
	Recent(ctx context.Context, limit int, since time.Time) []*models.Envelope
	BySession(ctx context.Context, sessionID string, limit int) []*models.Envelope
	ByID(ctx context.Context, id string) *models.Envelope
	Search(ctx context.Context, query string, limit int) []*models.Envelope
}

// ReconcileRunner triggers on-demand reconciliation passes.
type ReconcileRunner interface {
	Run(ctx context.Context, params reconciler.Params) (*reconciler.Summary, error)
}

// CounterSource provides the merged counter snapshot.
type CounterSource interface {
	Snapshot(ctx context.Context) map[string]int64
}

type handlers struct {
	deps Deps
}

// actionRequest is the write body. The operation id is accepted under
// three spellings for client compatibility; the first one found wins.
type actionRequest struct {
	OperationID string          `json:"operationId"`
	Operation   string          `json:"operation"`
	Type        string          `json:"type"`
	Level       string          `json:"level"`
	Who         string          `json:"who"`
	SessionID   string          `json:"session_id"`
	Tags        []string        `json:"tags"`
	Payload     json.RawMessage `json:"payload"`
}

func (a *actionRequest) operation() string {
	switch {
	case a.OperationID != "":
		return a.OperationID
	case a.Operation != "":
		return a.Operation
	default:
		return a.Type
	}
}

type actionResponse struct {
	Success bool `json:"success"`
	*writer.Result
}

// postAction handles POST /api/v1/actions.
func (h *handlers) postAction(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	op := body.operation()
	if op == "" {
		BadRequest(w, "operationId is required")
		return
	}

	result, err := h.deps.Writer.Write(r.Context(), &writer.Request{
		OperationID:    op,
		Level:          body.Level,
		Who:            body.Who,
		SessionID:      body.SessionID,
		Tags:           body.Tags,
		Payload:        body.Payload,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, actionResponse{Success: true, Result: result})
}

type listResponse struct {
	Items     []*models.Envelope `json:"items"`
	Count     int                `json:"count"`
	SessionID string             `json:"session_id,omitempty"`
}

// listLogs handles GET /api/v1/logs.
func (h *handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	var since time.Time
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}

	sessionID := q.Get("session_id")

	var items []*models.Envelope
	if sessionID != "" {
		items = h.deps.Reader.BySession(r.Context(), sessionID, limit)
	} else {
		items = h.deps.Reader.Recent(r.Context(), limit, since)
	}

	JSON(w, http.StatusOK, listResponse{Items: items, Count: len(items), SessionID: sessionID})
}

// getLog handles GET /api/v1/logs/{id}.
func (h *handlers) getLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e := h.deps.Reader.ByID(r.Context(), id)
	if e == nil {
		NotFound(w, "log not found")
		return
	}

	JSON(w, http.StatusOK, e)
}

// search handles GET /api/v1/search.
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		BadRequest(w, "q is required")
		return
	}

	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	items := h.deps.Reader.Search(r.Context(), query, limit)
	JSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

// reconcileRequest is the admin trigger body. Dry run defaults to true:
// a mutating pass must be asked for explicitly.
type reconcileRequest struct {
	WindowHours int   `json:"window_hours"`
	DryRun      *bool `json:"dry_run"`
}

// reconcile handles POST /api/v1/admin/reconcile.
func (h *handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	var body reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	params := reconciler.Params{WindowHours: body.WindowHours, DryRun: true}
	if body.DryRun != nil {
		params.DryRun = *body.DryRun
	}

	summary, err := h.deps.Reconciler.Run(r.Context(), params)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, summary)
}

// counterSnapshot handles GET /api/v1/admin/metrics.
func (h *handlers) counterSnapshot(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"counters":  h.deps.Counters.Snapshot(r.Context()),
		"timestamp": models.FormatTimestamp(time.Now().UTC()),
	})
}

// liveness handles GET /health/live.
func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.deps.Health.Live())
}

// readiness handles GET /health/ready. Always 200; consumers gate on the
// ready field.
func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.deps.Health.Ready(r.Context()))
}

// stores handles GET /health/stores.
func (h *handlers) stores(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.deps.Health.Stores(r.Context()))
}

// parseLimit parses the limit query parameter. Absent means the reader
// default; non-numeric is a client error.
func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return reader.DefaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		BadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
