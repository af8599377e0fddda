// Package memory is an in-memory object store used by tests and throwaway
// environments. It implements the same surface as the S3 adapter.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aquilhq/actionlog/pkg/models"
)

// Store keeps objects in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailWrites makes every WriteLog fail (breaker and degradation tests).
	FailWrites bool
}

// New creates an empty in-memory object store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// WriteLog archives the envelope under its object key.
func (s *Store) WriteLog(ctx context.Context, e *models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return fmt.Errorf("object store write refused")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.objects[e.ObjectKey()] = data
	return nil
}

// Exists reports whether an object is present under the key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// ReadLog fetches and decodes an archived envelope.
func (s *Store) ReadLog(ctx context.Context, key string) (*models.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrRecordNotFound
	}

	var e models.Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Healthcheck always succeeds.
func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
