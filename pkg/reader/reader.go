// Package reader serves canonicalized log reads. The relational store is
// the read surface of record (current schema with legacy fallback handled
// inside the adapter); the vector index adds a semantic retrieval surface
// hydrated from the relational rows.
//
// The reader never surfaces a store error to HTTP callers: failures yield
// empty results and a log_read_error_total counter, per the contract that
// reads are best-effort over an eventually consistent fan-out.
package reader

import (
	"context"
	"errors"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/store/vec"
)

const (
	// DefaultLimit applies when the caller does not specify one.
	DefaultLimit = 20

	// MaxLimit caps a caller-specified limit.
	MaxLimit = 200
)

// RelReader is the slice of the relational adapter the reader uses.
type RelReader interface {
	Recent(ctx context.Context, limit int, since time.Time, sessionID string) ([]*models.Envelope, error)
	ByID(ctx context.Context, id string) (*models.Envelope, error)
}

// VecSearcher is the slice of the vector adapter the reader uses. Nil when
// the vector store is unbound.
type VecSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]vec.Match, error)
}

// Reader serves canonical log items.
type Reader struct {
	rel      RelReader
	vec      VecSearcher
	counters *metrics.Counters
}

// New creates a reader. vec may be nil (search returns empty).
func New(rel RelReader, vecStore VecSearcher, counters *metrics.Counters) *Reader {
	return &Reader{rel: rel, vec: vecStore, counters: counters}
}

// ClampLimit normalizes a caller-supplied limit: negative values take the
// default, zero stays zero (an explicitly empty read), and anything above
// the cap is clamped.
func ClampLimit(limit int) int {
	switch {
	case limit < 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Recent returns up to limit envelopes newest-first, optionally bounded by
// since. limit follows ClampLimit semantics.
func (r *Reader) Recent(ctx context.Context, limit int, since time.Time) []*models.Envelope {
	return r.query(ctx, ClampLimit(limit), since, "")
}

// BySession returns up to limit envelopes for one session, newest-first.
func (r *Reader) BySession(ctx context.Context, sessionID string, limit int) []*models.Envelope {
	return r.query(ctx, ClampLimit(limit), time.Time{}, sessionID)
}

// ByID returns a single envelope, or nil when absent or unreadable.
func (r *Reader) ByID(ctx context.Context, id string) *models.Envelope {
	e, err := r.rel.ByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrRecordNotFound) {
			r.counters.Inc(metrics.LogReadErrorTotal, map[string]string{"source": "rel"})
			logger.Warn("Log read failed", "log_id", id, "error", err)
		}
		return nil
	}
	return canonicalize(e)
}

// Search embeds the query, ranks the vector index, and hydrates matches
// from the relational store. Ids missing from Rel are dropped: the index is
// advisory and must never invent records.
func (r *Reader) Search(ctx context.Context, query string, limit int) []*models.Envelope {
	limit = ClampLimit(limit)
	if r.vec == nil || limit == 0 || query == "" {
		return []*models.Envelope{}
	}

	matches, err := r.vec.Search(ctx, query, limit)
	if err != nil {
		r.counters.Inc(metrics.LogReadErrorTotal, map[string]string{"source": "vec"})
		logger.Warn("Vector search failed", "error", err)
		return []*models.Envelope{}
	}

	items := make([]*models.Envelope, 0, len(matches))
	for _, m := range matches {
		e, err := r.rel.ByID(ctx, m.ID)
		if err != nil {
			continue
		}
		items = append(items, canonicalize(e))
	}
	return items
}

func (r *Reader) query(ctx context.Context, limit int, since time.Time, sessionID string) []*models.Envelope {
	if limit == 0 {
		return []*models.Envelope{}
	}

	rows, err := r.rel.Recent(ctx, limit, since, sessionID)
	if err != nil {
		r.counters.Inc(metrics.LogReadErrorTotal, map[string]string{"source": "rel"})
		logger.Warn("Log query failed", "session_id", sessionID, "error", err)
		return []*models.Envelope{}
	}

	items := make([]*models.Envelope, 0, len(rows))
	for _, e := range rows {
		items = append(items, canonicalize(e))
	}
	return items
}

// canonicalize fixes the read-side shape: every item carries an operation
// id and a stores set. Rows served from Rel always have at least the rel
// tag; the adapter fills operationId from the detail document or the kind
// column, so only the stores set needs a floor here.
func canonicalize(e *models.Envelope) *models.Envelope {
	if e.OperationID == "" {
		e.OperationID = models.OperationFromKind(e.Kind)
	}
	if len(e.Stores) == 0 {
		e.Stores = []string{string(models.StoreRel)}
	}
	return e
}
