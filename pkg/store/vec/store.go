// Package vec is the vector index adapter: one embedding per record, keyed
// by log id, persisted in the shared KV database under vec:<id>. Search is
// a cosine-similarity scan over the index, which is ample at personal-
// assistant log volumes.
package vec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aquilhq/actionlog/pkg/embed"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/store/kv"
)

// entry is the persisted index document.
type entry struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata metadata  `json:"metadata"`
}

// metadata carried alongside each vector.
type metadata struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Backfilled bool      `json:"backfilled,omitempty"`
}

// Match is one search result.
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Kind  string  `json:"kind"`
}

// Store indexes envelopes by embedding.
type Store struct {
	kv       *kv.Store
	embedder embed.Embedder
}

// New creates the vector store over the shared KV database.
func New(kvStore *kv.Store, embedder embed.Embedder) *Store {
	return &Store{kv: kvStore, embedder: embedder}
}

// Key returns the index key for a log id.
func Key(id string) string { return kv.PrefixVector + id }

// Write embeds the envelope's text summary and upserts its index entry.
// An existing vector for the id is replaced.
func (s *Store) Write(ctx context.Context, e *models.Envelope) error {
	vector, err := s.embedder.Embed(ctx, e.EmbedText())
	if err != nil {
		return fmt.Errorf("embed log %s: %w", e.ID, err)
	}

	doc := entry{
		ID:     e.ID,
		Vector: vector,
		Metadata: metadata{
			Timestamp:  e.Timestamp,
			Kind:       e.Kind,
			Backfilled: e.Backfilled,
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal vector entry: %w", err)
	}

	return s.kv.Set(ctx, Key(e.ID), data, 0)
}

// Has reports whether the id is indexed.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	return s.kv.Has(ctx, Key(id))
}

// Search embeds the query and returns the top limit matches by cosine
// similarity, best first. The embedder's vectors are L2-normalized so the
// dot product is the cosine.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		return []Match{}, nil
	}

	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var matches []Match
	err = s.kv.Scan(ctx, kv.PrefixVector, func(key string, value []byte) (bool, error) {
		var doc entry
		if jsonErr := json.Unmarshal(value, &doc); jsonErr != nil {
			// A corrupt entry is skipped, not fatal to the search.
			return true, nil
		}
		if len(doc.Vector) != len(qv) {
			return true, nil
		}
		matches = append(matches, Match{
			ID:    doc.ID,
			Score: dot(qv, doc.Vector),
			Kind:  doc.Metadata.Kind,
		})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan vector index: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of indexed vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.kv.ListKeys(ctx, kv.PrefixVector)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Healthcheck verifies the underlying KV database is usable.
func (s *Store) Healthcheck(ctx context.Context) error {
	return s.kv.Healthcheck(ctx)
}

// EmbedderName identifies the embedding backend for health output.
func (s *Store) EmbedderName() string {
	return s.embedder.Name()
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
