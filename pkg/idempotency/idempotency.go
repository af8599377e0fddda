// Package idempotency implements replay detection for mutating writes,
// keyed by the client-supplied Idempotency-Key header. Records live in the
// KV store under idempotency:<key> with a retention floor of 24 hours.
//
// Concurrent writers racing on the same key are serialized by the store's
// conditional insert: the first writer's record wins and later writers
// observe it.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/models"
)

// MinRetention is the contract floor for record lifetime.
const MinRetention = 24 * time.Hour

// KeyFor returns the KV key for an idempotency record.
func KeyFor(key string) string {
	return "idempotency:" + key
}

// Record is the persisted result summary for a completed write. A replay
// returns these fields instead of re-executing store writes.
type Record struct {
	Key         string             `json:"key"`
	OperationID string             `json:"operationId"`
	CreatedAt   time.Time          `json:"created_at"`
	ID          string             `json:"id"`
	SessionID   string             `json:"session_id"`
	Stores      []string           `json:"stores"`
	Status      models.WriteStatus `json:"status"`
}

// KV is the slice of the key-value store the service needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (existing []byte, stored bool, err error)
}

// Service looks up and stores idempotency records.
type Service struct {
	kv        KV
	retention time.Duration
}

// New creates the service. Retention below the 24h floor is raised to it.
func New(kv KV, retention time.Duration) *Service {
	if retention < MinRetention {
		retention = MinRetention
	}
	return &Service{kv: kv, retention: retention}
}

// Lookup returns the record for key, or nil when the key has not been seen.
// A KV failure degrades to a miss: the write proceeds and at worst a replay
// creates a second record under a fresh id, which reconciliation tolerates.
func (s *Service) Lookup(ctx context.Context, key string) *Record {
	if s == nil || key == "" {
		return nil
	}

	data, err := s.kv.Get(ctx, KeyFor(key))
	if err != nil {
		if !errors.Is(err, models.ErrRecordNotFound) {
			logger.Warn("Idempotency lookup failed, treating as miss", "error", err)
		}
		return nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn("Corrupt idempotency record, treating as miss", "key", key, "error", err)
		return nil
	}
	return &rec
}

// Store persists the record unless another writer already did. Returns the
// winning record: rec itself when this writer won, the prior writer's
// record otherwise. Persistence failure is soft; the write has already
// succeeded and must not be failed retroactively.
func (s *Service) Store(ctx context.Context, rec *Record) (winner *Record, won bool) {
	if s == nil || rec == nil || rec.Key == "" {
		return rec, true
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logger.Warn("Idempotency record not stored", "key", rec.Key, "error", fmt.Errorf("marshal: %w", err))
		return rec, true
	}

	existing, stored, err := s.kv.SetNX(ctx, KeyFor(rec.Key), data, s.retention)
	if err != nil {
		logger.Warn("Idempotency record not stored", "key", rec.Key, "error", err)
		return rec, true
	}
	if stored {
		return rec, true
	}

	var prior Record
	if err := json.Unmarshal(existing, &prior); err != nil {
		logger.Warn("Corrupt prior idempotency record", "key", rec.Key, "error", err)
		return rec, true
	}
	return &prior, false
}
