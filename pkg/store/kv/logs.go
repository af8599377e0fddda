package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquilhq/actionlog/pkg/models"
)

// LogKey returns the key a mirrored envelope is stored under.
func LogKey(id string) string { return PrefixLog + id }

// WriteLog mirrors the envelope under log:<id>, applying the configured TTL.
func (s *Store) WriteLog(ctx context.Context, e *models.Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return s.Set(ctx, LogKey(e.ID), data, s.logTTL)
}

// ReadLog returns the mirrored envelope, or models.ErrRecordNotFound when
// the id was never mirrored or its entry expired.
func (s *Store) ReadLog(ctx context.Context, id string) (*models.Envelope, error) {
	data, err := s.Get(ctx, LogKey(id))
	if err != nil {
		return nil, err
	}

	var e models.Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope %s: %w", id, err)
	}
	return &e, nil
}

// HasLog reports whether an envelope is mirrored under the id.
func (s *Store) HasLog(ctx context.Context, id string) (bool, error) {
	return s.Has(ctx, LogKey(id))
}
