// Package breaker implements the per-store circuit breaker. State lives in
// the KV store under circuit_breaker:<store> as a read-modify-write JSON
// document, last-writer-wins: a lost update merely delays opening by one
// sample, which is acceptable because the breaker is advisory.
//
// The breaker opens after N failures within a rolling 60s window and closes
// only via the 300s cooldown; recording a success never closes it early, so
// a flapping store cannot bounce the state.
package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/models"
)

const (
	// WindowLength is the rolling failure-count window.
	WindowLength = 60 * time.Second

	// Cooldown is how long an open breaker short-circuits before half-closing.
	Cooldown = 300 * time.Second

	// stateTTL bounds how long stale breaker state survives in KV.
	stateTTL = time.Hour
)

// KeyFor returns the KV key for a store's breaker state.
func KeyFor(store models.StoreTag) string {
	return "circuit_breaker:" + string(store)
}

// State is the persisted breaker document.
type State struct {
	Failures    int        `json:"failures"`
	WindowStart time.Time  `json:"window_start"`
	IsOpen      bool       `json:"is_open"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
}

// Decision is the answer to a pre-call breaker check.
type Decision struct {
	// Open reports the persisted open state after window/cooldown handling.
	Open bool

	// ShouldSkip is Open gated by the enable flag: only an enabled breaker
	// short-circuits store calls.
	ShouldSkip bool
}

// Settings are the live-tunable knobs. Swapped atomically on config reload.
type Settings struct {
	// Enabled gates enforcement. State is tracked either way so enabling
	// the breaker mid-incident starts from real counts.
	Enabled bool

	// Threshold is the failure count within the window that opens the
	// breaker.
	Threshold int
}

// KV is the slice of the key-value store the breaker needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Breaker tracks failure windows for all four stores.
type Breaker struct {
	kv       KV
	counters *metrics.Counters
	settings atomic.Pointer[Settings]

	// now is swappable for tests.
	now func() time.Time
}

// New creates a breaker over the given KV store. counters may be nil.
// kv may be nil too: without it no state persists and the breaker fails
// open on every check.
func New(kv KV, counters *metrics.Counters, settings Settings) *Breaker {
	b := &Breaker{
		kv:       kv,
		counters: counters,
		now:      time.Now,
	}
	b.settings.Store(&settings)
	return b
}

// UpdateSettings swaps the live settings (config hot-reload).
func (b *Breaker) UpdateSettings(settings Settings) {
	b.settings.Store(&settings)
}

// Check reloads the store's state, expires the failure window, half-closes
// after the cooldown, and reports whether the caller should skip I/O.
// Any KV failure degrades to fail-open: the breaker never blocks a request
// it cannot account for.
func (b *Breaker) Check(ctx context.Context, store models.StoreTag) Decision {
	settings := b.settings.Load()

	state, err := b.load(ctx, store)
	if err != nil {
		logger.Warn("Breaker state unavailable, failing open", "store", store, "error", err)
		return Decision{}
	}

	now := b.now()
	dirty := false

	if now.Sub(state.WindowStart) > WindowLength {
		state.Failures = 0
		state.WindowStart = now
		dirty = true
	}

	if state.IsOpen && state.OpenedAt != nil && now.Sub(*state.OpenedAt) > Cooldown {
		logger.Info("Breaker cooldown elapsed, half-closing", "store", store)
		state.IsOpen = false
		state.OpenedAt = nil
		state.Failures = 0
		dirty = true
	}

	if dirty {
		if err := b.save(ctx, store, state); err != nil {
			logger.Warn("Breaker state persistence failed, failing open", "store", store, "error", err)
			return Decision{}
		}
	}

	return Decision{
		Open:       state.IsOpen,
		ShouldSkip: settings.Enabled && state.IsOpen,
	}
}

// RecordFailure increments the failure count and opens the breaker when the
// threshold is reached within the window.
func (b *Breaker) RecordFailure(ctx context.Context, store models.StoreTag) {
	settings := b.settings.Load()

	state, err := b.load(ctx, store)
	if err != nil {
		logger.Warn("Breaker failure not recorded", "store", store, "error", err)
		return
	}

	now := b.now()
	if now.Sub(state.WindowStart) > WindowLength {
		state.Failures = 0
		state.WindowStart = now
	}

	state.Failures++

	if state.Failures >= settings.Threshold && !state.IsOpen {
		state.IsOpen = true
		state.OpenedAt = &now
		b.counters.Inc(metrics.StoreCircuitOpenTotal, map[string]string{"store": string(store)})
		logger.Warn("Store circuit breaker opened",
			"store", store,
			"failures", state.Failures,
			"threshold", settings.Threshold,
		)
	}

	if err := b.save(ctx, store, state); err != nil {
		logger.Warn("Breaker failure not persisted", "store", store, "error", err)
	}
}

// RecordSuccess leaves the window in place. The cooldown timer is what
// closes the breaker; success-based closing would flap on a store that
// alternates between working and failing.
func (b *Breaker) RecordSuccess(ctx context.Context, store models.StoreTag) {
	// Nothing to persist: the window keeps its failure count until it
	// expires, and open state waits for the cooldown.
}

// Snapshot returns the current state of every store's breaker for the
// health surface. Unreadable state reports as a zero value.
func (b *Breaker) Snapshot(ctx context.Context) map[models.StoreTag]State {
	out := make(map[models.StoreTag]State, 4)
	for _, store := range models.AllStores() {
		state, err := b.load(ctx, store)
		if err != nil {
			out[store] = State{}
			continue
		}
		out[store] = *state
	}
	return out
}

func (b *Breaker) load(ctx context.Context, store models.StoreTag) (*State, error) {
	// No KV binding means no persisted state: every call sees a fresh
	// window, which is the fail-open posture.
	if b.kv == nil {
		return &State{WindowStart: b.now()}, nil
	}

	data, err := b.kv.Get(ctx, KeyFor(store))
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return &State{WindowStart: b.now()}, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state resets to a fresh window rather than wedging the
		// store behind an unparseable document.
		return &State{WindowStart: b.now()}, nil
	}
	if state.WindowStart.IsZero() {
		state.WindowStart = b.now()
	}
	return &state, nil
}

func (b *Breaker) save(ctx context.Context, store models.StoreTag, state *State) error {
	if b.kv == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal breaker state: %w", err)
	}
	return b.kv.Set(ctx, KeyFor(store), data, stateTTL)
}
