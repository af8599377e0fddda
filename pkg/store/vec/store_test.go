package vec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquilhq/actionlog/pkg/embed"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/store/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	kvStore, err := kv.New(kv.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvStore.Close() })

	return New(kvStore, embed.NewSimple(64))
}

func envelope(id, op, text string) *models.Envelope {
	payload, _ := json.Marshal(map[string]string{"summary": text})
	return &models.Envelope{
		ID:          id,
		Timestamp:   time.Now().UTC(),
		OperationID: op,
		Kind:        op,
		Level:       models.LevelInfo,
		SessionID:   "s1",
		Payload:     payload,
	}
}

func TestWriteAndHas(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, envelope("id-1", "trustCheckIn", "feeling grounded")))

	ok, err := s.Has(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(ctx, "id-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteReplacesExistingVector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, envelope("id-1", "trustCheckIn", "first")))
	require.NoError(t, s.Write(ctx, envelope("id-1", "trustCheckIn", "second")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, envelope("id-trust", "trustCheckIn", "trust check in feeling safe")))
	require.NoError(t, s.Write(ctx, envelope("id-dream", "interpretDream", "dream interpretation water symbols")))
	require.NoError(t, s.Write(ctx, envelope("id-media", "mediaWisdomExtract", "podcast wisdom extraction notes")))

	matches, err := s.Search(ctx, "trust check in safe", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "id-trust", matches[0].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestSearchZeroLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, envelope("id-1", "trustCheckIn", "x")))

	matches, err := s.Search(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBackfilledMetadataPersists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := envelope("id-1", "trustCheckIn", "x")
	e.Backfilled = true
	now := time.Now().UTC()
	e.BackfilledAt = &now
	require.NoError(t, s.Write(ctx, e))

	ok, err := s.Has(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
