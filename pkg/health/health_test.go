package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/registry"
)

type fakeBreakers struct {
	states map[models.StoreTag]breaker.State
}

func (f *fakeBreakers) Snapshot(ctx context.Context) map[models.StoreTag]breaker.State {
	if f.states == nil {
		return map[models.StoreTag]breaker.State{}
	}
	return f.states
}

type fakeChecker struct {
	err error
}

func (f *fakeChecker) Healthcheck(ctx context.Context) error { return f.err }

func newReporter(t *testing.T, opts Options) *Reporter {
	t.Helper()

	if opts.Registry == nil {
		reg, err := registry.New()
		require.NoError(t, err)
		opts.Registry = reg
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	if opts.Breakers == nil {
		opts.Breakers = &fakeBreakers{}
	}
	return New(opts)
}

func TestTrackerWindowExpiry(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.Observe(true)
	tr.Observe(false)
	tr.Observe(false)

	successes, errors := tr.Stats()
	assert.Equal(t, 1, successes)
	assert.Equal(t, 2, errors)
	assert.InDelta(t, 2.0/3.0, tr.ErrorRate(), 1e-9)

	now = now.Add(61 * time.Second)
	successes, errors = tr.Stats()
	assert.Zero(t, successes)
	assert.Zero(t, errors)
	assert.Zero(t, tr.ErrorRate())
}

func TestLive(t *testing.T) {
	r := newReporter(t, Options{Version: "1.2.3", Rel: &fakeChecker{}})

	live := r.Live()
	assert.Equal(t, "healthy", live.Status)
	assert.Equal(t, "1.2.3", live.Version)
	assert.NotEmpty(t, live.Timestamp)
}

func TestReadyWhenAllClear(t *testing.T) {
	r := newReporter(t, Options{Rel: &fakeChecker{}, KV: &fakeChecker{}})

	ready := r.Ready(context.Background())
	assert.True(t, ready.Ready)
	assert.Empty(t, ready.Reasons)
	assert.Equal(t, "bound", ready.Stores[models.StoreRel])
	assert.Equal(t, "unbound", ready.Stores[models.StoreObj])
}

func TestNotReadyWhenBreakerOpen(t *testing.T) {
	r := newReporter(t, Options{
		Rel: &fakeChecker{},
		Breakers: &fakeBreakers{states: map[models.StoreTag]breaker.State{
			models.StoreKV: {IsOpen: true, Failures: 7},
		}},
	})

	ready := r.Ready(context.Background())
	assert.False(t, ready.Ready)
	assert.True(t, ready.Breakers[models.StoreKV])
	require.Len(t, ready.Reasons, 1)
	assert.Contains(t, ready.Reasons[0], "circuit breaker open")
}

func TestNotReadyOverErrorRate(t *testing.T) {
	tracker := NewTracker()
	tracker.Observe(true)
	tracker.Observe(false)
	tracker.Observe(false)

	r := newReporter(t, Options{Rel: &fakeChecker{}, Tracker: tracker, MaxErrorRate: 0.5})

	ready := r.Ready(context.Background())
	assert.False(t, ready.Ready)
	assert.Equal(t, 2, ready.RecentErrors)
	require.Len(t, ready.Reasons, 1)
	assert.Contains(t, ready.Reasons[0], "error rate")
}

func TestNotReadyWithoutRelStore(t *testing.T) {
	r := newReporter(t, Options{KV: &fakeChecker{}})

	ready := r.Ready(context.Background())
	assert.False(t, ready.Ready)
	require.Len(t, ready.Reasons, 1)
	assert.Contains(t, ready.Reasons[0], "relational store unbound")
}

func TestEmptyWindowIsReady(t *testing.T) {
	// No writes yet must not read as a 100% error rate.
	r := newReporter(t, Options{Rel: &fakeChecker{}})

	ready := r.Ready(context.Background())
	assert.True(t, ready.Ready)
	assert.Zero(t, ready.ErrorRate)
}

func TestStoresDeepCheck(t *testing.T) {
	r := newReporter(t, Options{
		Rel: &fakeChecker{},
		KV:  &fakeChecker{err: fmt.Errorf("badger closed")},
		Breakers: &fakeBreakers{states: map[models.StoreTag]breaker.State{
			models.StoreKV: {IsOpen: true},
		}},
	})

	report := r.Stores(context.Background())
	assert.Positive(t, report.Operations)

	rel := report.Stores[models.StoreRel]
	assert.True(t, rel.Bound)
	assert.True(t, rel.Healthy)

	kv := report.Stores[models.StoreKV]
	assert.True(t, kv.Bound)
	assert.False(t, kv.Healthy)
	assert.True(t, kv.BreakerOpen)
	assert.Contains(t, kv.Error, "badger closed")

	obj := report.Stores[models.StoreObj]
	assert.False(t, obj.Bound)
	assert.False(t, obj.Healthy)
}
