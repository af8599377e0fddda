package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquilhq/actionlog/pkg/models"
)

// fakeKV is an in-memory KV double for persistence tests.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, assert.AnError
	}
	v, ok := f.data[key]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return assert.AnError
	}
	f.data[key] = value
	return nil
}

func TestIncrementAndSnapshot(t *testing.T) {
	c := New(nil, nil)

	c.Inc(LogWrittenTotal, map[string]string{"store": "rel"})
	c.Inc(LogWrittenTotal, map[string]string{"store": "rel"})
	c.Inc(LogWrittenTotal, map[string]string{"store": "kv"})
	c.Inc(IdempotencyHitsTotal, nil)

	snap := c.Snapshot(context.Background())
	assert.Equal(t, int64(2), snap[`log_written_total{store="rel"}`])
	assert.Equal(t, int64(1), snap[`log_written_total{store="kv"}`])
	assert.Equal(t, int64(1), snap["idempotency_hits_total"])
}

func TestLabelOrderIrrelevant(t *testing.T) {
	c := New(nil, nil)

	c.Inc("x_total", map[string]string{"a": "1", "b": "2"})
	c.Inc("x_total", map[string]string{"b": "2", "a": "1"})

	snap := c.Snapshot(context.Background())
	assert.Equal(t, int64(2), snap[`x_total{a="1",b="2"}`])
	assert.Len(t, snap, 1)
}

func TestSnapshotMergesPersisted(t *testing.T) {
	kv := newFakeKV()
	persisted, err := json.Marshal(map[string]int64{
		`log_written_total{store="rel"}`: 10,
		"idempotency_hits_total":         3,
	})
	require.NoError(t, err)
	kv.data[KeyCounters] = persisted

	c := New(kv, nil)
	c.Inc(LogWrittenTotal, map[string]string{"store": "rel"})

	snap := c.Snapshot(context.Background())
	assert.Equal(t, int64(11), snap[`log_written_total{store="rel"}`])
	assert.Equal(t, int64(3), snap["idempotency_hits_total"])
}

func TestSnapshotDegradesOnKVFailure(t *testing.T) {
	kv := newFakeKV()
	kv.failGet = true

	c := New(kv, nil)
	c.Inc(UnknownOpTotal, map[string]string{"operation": "mystery"})

	snap := c.Snapshot(context.Background())
	assert.Equal(t, int64(1), snap[`unknown_op_total{operation="mystery"}`])
}

func TestPersistSwallowsFailure(t *testing.T) {
	kv := newFakeKV()
	kv.failSet = true

	c := New(kv, nil)
	c.Inc(ActionSuccessTotal, map[string]string{"operation": "trustCheckIn"})

	// Must not panic or error
	c.Persist(context.Background())
}

func TestPersistRoundTrip(t *testing.T) {
	kv := newFakeKV()

	c := New(kv, nil)
	c.Inc(ActionSuccessTotal, map[string]string{"operation": "trustCheckIn"})
	c.Persist(context.Background())

	// A fresh store over the same KV sees the persisted values.
	c2 := New(kv, nil)
	snap := c2.Snapshot(context.Background())
	assert.Equal(t, int64(1), snap[`action_success_total{operation="trustCheckIn"}`])
}

func TestNilCountersAreNoops(t *testing.T) {
	var c *Counters
	c.Inc(LogWrittenTotal, nil)
	c.Persist(context.Background())
	assert.Empty(t, c.Snapshot(context.Background()))
}

func TestConcurrentIncrements(t *testing.T) {
	c := New(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc(LogWrittenTotal, map[string]string{"store": "kv"})
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot(context.Background())
	assert.Equal(t, int64(5000), snap[`log_written_total{store="kv"}`])
}
