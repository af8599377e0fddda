package reconciler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/registry"
)

type fakeRel struct {
	rows []*models.Envelope
	err  error
}

func (f *fakeRel) Window(ctx context.Context, from, to time.Time) ([]*models.Envelope, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeKV struct {
	mu         sync.Mutex
	entries    map[string]*models.Envelope
	failWrites bool
}

func newFakeKV() *fakeKV { return &fakeKV{entries: map[string]*models.Envelope{}} }

func (f *fakeKV) HasLog(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[id]
	return ok, nil
}

func (f *fakeKV) WriteLog(ctx context.Context, e *models.Envelope) error {
	if f.failWrites {
		return fmt.Errorf("kv unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = e
	return nil
}

type fakeObj struct {
	mu      sync.Mutex
	objects map[string]*models.Envelope
}

func newFakeObj() *fakeObj { return &fakeObj{objects: map[string]*models.Envelope{}} }

func (f *fakeObj) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeObj) WriteLog(ctx context.Context, e *models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[e.ObjectKey()] = e
	return nil
}

type fakeVec struct {
	mu      sync.Mutex
	entries map[string]*models.Envelope
}

func newFakeVec() *fakeVec { return &fakeVec{entries: map[string]*models.Envelope{}} }

func (f *fakeVec) Has(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[id]
	return ok, nil
}

func (f *fakeVec) Write(ctx context.Context, e *models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = e
	return nil
}

type fakeBreaker struct {
	mu        sync.Mutex
	open      map[models.StoreTag]bool
	failures  map[models.StoreTag]int
	successes map[models.StoreTag]int
}

func newFakeBreaker() *fakeBreaker {
	return &fakeBreaker{
		open:      map[models.StoreTag]bool{},
		failures:  map[models.StoreTag]int{},
		successes: map[models.StoreTag]int{},
	}
}

func (f *fakeBreaker) Check(ctx context.Context, store models.StoreTag) breaker.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := f.open[store]
	return breaker.Decision{Open: open, ShouldSkip: open}
}

func (f *fakeBreaker) RecordFailure(ctx context.Context, store models.StoreTag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[store]++
}

func (f *fakeBreaker) RecordSuccess(ctx context.Context, store models.StoreTag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes[store]++
}

type harness struct {
	rec      *Reconciler
	rel      *fakeRel
	kv       *fakeKV
	obj      *fakeObj
	vec      *fakeVec
	counters *metrics.Counters
}

func newHarness(t *testing.T, rows []*models.Envelope) *harness {
	t.Helper()

	reg, err := registry.New()
	require.NoError(t, err)

	h := &harness{
		rel:      &fakeRel{rows: rows},
		kv:       newFakeKV(),
		obj:      newFakeObj(),
		vec:      newFakeVec(),
		counters: metrics.New(nil, nil),
	}
	h.rec = New(Options{
		Registry: reg,
		Counters: h.counters,
		Rel:      h.rel,
		KV:       h.kv,
		Obj:      h.obj,
		Vec:      h.vec,
	})
	return h
}

func envelope(id, op string) *models.Envelope {
	return &models.Envelope{
		ID:          id,
		Timestamp:   time.Now().UTC(),
		OperationID: op,
		Kind:        op,
		Level:       models.LevelInfo,
		SessionID:   "session-1",
	}
}

// seed loads one envelope into every secondary store, as a completed
// fan-out would have.
func (h *harness) seed(e *models.Envelope) {
	h.kv.entries[e.ID] = e
	h.vec.entries[e.ID] = e
	h.obj.objects[e.ObjectKey()] = e
}

func TestRunRestoresMissingCopies(t *testing.T) {
	rows := []*models.Envelope{
		envelope("id-1", "trustCheckIn"),
		envelope("id-2", "trustCheckIn"),
		envelope("id-3", "synthesizeWisdom"),
	}
	h := newHarness(t, rows)

	// id-2 is fully present; id-1 lacks kv, id-3 lacks kv, vec and obj.
	h.seed(rows[1])
	h.vec.entries["id-1"] = rows[0]
	h.obj.objects[rows[0].ObjectKey()] = rows[0]

	summary, err := h.rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Analyzed)
	assert.Equal(t, 2, summary.Missing[models.StoreKV])
	assert.Equal(t, 1, summary.Missing[models.StoreVec])
	assert.Equal(t, 1, summary.Missing[models.StoreObj])
	assert.Equal(t, 4, summary.Backfilled)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, ConsistencyRestored, summary.Consistency)

	snap := h.counters.Snapshot(context.Background())
	assert.Equal(t, int64(2), snap[`reconcile_backfills_total{store="kv"}`])
	assert.Equal(t, int64(1), snap[`reconcile_backfills_total{store="vec"}`])
	assert.Equal(t, int64(1), snap[`reconcile_backfills_total{store="obj"}`])

	// A second pass finds nothing to do.
	summary, err = h.rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)
	assert.Equal(t, ConsistencyPerfect, summary.Consistency)
	assert.Equal(t, 0, summary.Backfilled)
}

func TestBackfilledCopiesCarryMarker(t *testing.T) {
	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	h := newHarness(t, rows)

	_, err := h.rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	restored := h.kv.entries["id-1"]
	require.NotNil(t, restored)
	assert.True(t, restored.Backfilled)
	require.NotNil(t, restored.BackfilledAt)

	// The Rel row itself is untouched.
	assert.False(t, rows[0].Backfilled)
	assert.Nil(t, rows[0].BackfilledAt)
}

func TestDryRunAnalyzesWithoutWriting(t *testing.T) {
	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	h := newHarness(t, rows)

	summary, err := h.rec.Run(context.Background(), Params{WindowHours: 24, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Missing[models.StoreKV])
	assert.Equal(t, 0, summary.Backfilled)
	assert.Equal(t, ConsistencyDegraded, summary.Consistency)
	assert.Empty(t, h.kv.entries)
	assert.Empty(t, h.counters.Snapshot(context.Background()))
}

func TestPolicyNoneSkipsArchiveCheck(t *testing.T) {
	// getDailySynthesis never archives, so an absent object is not missing.
	rows := []*models.Envelope{envelope("id-1", "getDailySynthesis")}
	h := newHarness(t, rows)
	h.kv.entries["id-1"] = rows[0]
	h.vec.entries["id-1"] = rows[0]

	summary, err := h.rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	assert.Equal(t, ConsistencyPerfect, summary.Consistency)
	assert.Empty(t, h.obj.objects)
}

func TestBackfillFailureDegrades(t *testing.T) {
	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	h := newHarness(t, rows)
	h.vec.entries["id-1"] = rows[0]
	h.obj.objects[rows[0].ObjectKey()] = rows[0]
	h.kv.failWrites = true

	summary, err := h.rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Missing[models.StoreKV])
	assert.Equal(t, 0, summary.Backfilled)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, ConsistencyDegraded, summary.Consistency)
}

func TestOpenBreakerLeavesStoreAlone(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)

	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	kv := newFakeKV()
	vec := newFakeVec()
	obj := newFakeObj()
	brk := newFakeBreaker()
	brk.open[models.StoreKV] = true

	rec := New(Options{
		Registry: reg,
		Counters: metrics.New(nil, nil),
		Breaker:  brk,
		Rel:      &fakeRel{rows: rows},
		KV:       kv,
		Obj:      obj,
		Vec:      vec,
	})

	summary, err := rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	// The kv copy stays missing for the next pass: no probe, no backfill.
	assert.Empty(t, kv.entries)
	assert.Equal(t, 0, summary.Missing[models.StoreKV])

	// The other stores are still repaired.
	assert.Len(t, vec.entries, 1)
	assert.Len(t, obj.objects, 1)

	// A pass that could not see a whole store is never perfect.
	assert.Equal(t, ConsistencyDegraded, summary.Consistency)
}

func TestBackfillOutcomesFeedBreaker(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)

	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	kv := newFakeKV()
	kv.failWrites = true
	vec := newFakeVec()
	brk := newFakeBreaker()

	rec := New(Options{
		Registry: reg,
		Counters: metrics.New(nil, nil),
		Breaker:  brk,
		Rel:      &fakeRel{rows: rows},
		KV:       kv,
		Vec:      vec,
	})

	_, err = rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)

	assert.Equal(t, 1, brk.failures[models.StoreKV])
	assert.Equal(t, 1, brk.successes[models.StoreVec])
}

func TestUnboundTargetsAreSkipped(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)

	rec := New(Options{
		Registry: reg,
		Counters: metrics.New(nil, nil),
		Rel:      &fakeRel{rows: []*models.Envelope{envelope("id-1", "trustCheckIn")}},
	})

	summary, err := rec.Run(context.Background(), Params{WindowHours: 24})
	require.NoError(t, err)
	assert.Equal(t, ConsistencyPerfect, summary.Consistency)
}

func TestRelWindowErrorAborts(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)

	rec := New(Options{
		Registry: reg,
		Counters: metrics.New(nil, nil),
		Rel:      &fakeRel{err: fmt.Errorf("connection refused")},
	})

	_, err = rec.Run(context.Background(), Params{WindowHours: 24})
	assert.Error(t, err)
}

func TestCancellationStopsBetweenRecords(t *testing.T) {
	rows := []*models.Envelope{
		envelope("id-1", "trustCheckIn"),
		envelope("id-2", "trustCheckIn"),
	}
	h := newHarness(t, rows)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.rec.Run(ctx, Params{WindowHours: 24})
	require.Error(t, err)
	assert.Equal(t, 0, summary.Backfilled)
	assert.Empty(t, h.kv.entries)
}

func TestSchedulerDisabledWithZeroInterval(t *testing.T) {
	h := newHarness(t, nil)

	s := NewScheduler(h.rec, 0, 24)
	s.Start(context.Background())
	s.Stop()
}

func TestSchedulerRunsAndStops(t *testing.T) {
	rows := []*models.Envelope{envelope("id-1", "trustCheckIn")}
	h := newHarness(t, rows)

	s := NewScheduler(h.rec, 10*time.Millisecond, 24)
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		h.kv.mu.Lock()
		defer h.kv.mu.Unlock()
		return len(h.kv.entries) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}
