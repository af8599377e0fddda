// Package metrics holds the in-memory labeled counter store. Counters are
// the observability surface the release controls and the write path report
// into; they are best-effort and no counter operation ever fails a request.
//
// A Prometheus mirror (pkg/metrics/prometheus) can be attached so the same
// increments feed the /metrics exposition. Persistence to the KV store is
// fire-and-forget under a single key.
package metrics

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
)

// Counter names. Labels in parentheses.
const (
	LogWrittenTotal          = "log_written_total"           // (store)
	MissingStoreWriteTotal   = "missing_store_write_total"   // (store)
	ActionSuccessTotal       = "action_success_total"        // (operation)
	ActionErrorTotal         = "action_error_total"          // (operation)
	UnknownOpTotal           = "unknown_op_total"            // (operation)
	IdempotencyHitsTotal     = "idempotency_hits_total"      // (no labels)
	RateLimitExceededTotal   = "rate_limit_exceeded_total"   // (identifier)
	RequestSizeExceededTotal = "request_size_exceeded_total" // (no labels)
	StoreCircuitOpenTotal    = "store_circuit_open_total"    // (store)
	ReconcileBackfillsTotal  = "reconcile_backfills_total"   // (store)
	LogReadErrorTotal        = "log_read_error_total"        // (source)
)

// KeyCounters is the KV key the serialized counter map persists under.
const KeyCounters = "metrics:counters"

// persistTTL bounds how long persisted counters outlive the process.
const persistTTL = 30 * 24 * time.Hour

// KV is the slice of the key-value store the counter persistence needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Mirror receives every increment in addition to the in-memory map. A nil
// mirror is valid and free.
type Mirror interface {
	Inc(name string, labels map[string]string, delta int64)
}

// Counters is the in-memory counter store: the only process-global mutable
// state besides caches. Safe for concurrent use.
type Counters struct {
	mu     sync.RWMutex
	values map[string]int64

	kv     KV     // nil disables persistence
	mirror Mirror // nil disables the Prometheus mirror
}

// New creates a counter store. kv may be nil (no persistence) and mirror may
// be nil (no Prometheus exposition).
func New(kv KV, mirror Mirror) *Counters {
	return &Counters{
		values: make(map[string]int64),
		kv:     kv,
		mirror: mirror,
	}
}

// Increment adds delta (default callers pass 1) to the counter identified by
// name and labels. Never fails; a nil receiver is a no-op so components can
// run without metrics wired.
func (c *Counters) Increment(name string, labels map[string]string, delta int64) {
	if c == nil || delta == 0 {
		return
	}

	key := counterKey(name, labels)

	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()

	if c.mirror != nil {
		c.mirror.Inc(name, labels, delta)
	}
}

// Inc is Increment with delta 1.
func (c *Counters) Inc(name string, labels map[string]string) {
	c.Increment(name, labels, 1)
}

// Snapshot returns the merged view of persisted and in-memory counters,
// label-preserving. Values for the same (name, labels) sum. A KV read
// failure degrades to the in-memory view.
func (c *Counters) Snapshot(ctx context.Context) map[string]int64 {
	out := make(map[string]int64)

	if c == nil {
		return out
	}

	if c.kv != nil {
		if data, err := c.kv.Get(ctx, KeyCounters); err == nil {
			var persisted map[string]int64
			if jsonErr := json.Unmarshal(data, &persisted); jsonErr == nil {
				for k, v := range persisted {
					out[k] += v
				}
			}
		}
	}

	c.mu.RLock()
	for k, v := range c.values {
		out[k] += v
	}
	c.mu.RUnlock()

	return out
}

// Persist writes the merged counter map to KV. Fire-and-forget: errors are
// logged at debug and swallowed, per the swallow-on-failure contract.
func (c *Counters) Persist(ctx context.Context) {
	if c == nil || c.kv == nil {
		return
	}

	merged := c.Snapshot(ctx)

	data, err := json.Marshal(merged)
	if err != nil {
		logger.Debug("Counter persistence skipped, marshal failed", "error", err)
		return
	}

	if err := c.kv.Set(ctx, KeyCounters, data, persistTTL); err != nil {
		logger.Debug("Counter persistence failed", "error", err)
	}
}

// StartFlusher persists the counters every interval until ctx is cancelled,
// with one final flush on the way out. Returns immediately when persistence
// is not configured.
func (c *Counters) StartFlusher(ctx context.Context, interval time.Duration) {
	if c == nil || c.kv == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.Persist(flushCtx)
				cancel()
				return
			case <-ticker.C:
				c.Persist(ctx)
			}
		}
	}()
}

// counterKey serializes (name, labels) into the map key. Labels are sorted
// so the same label set always produces the same key. The format matches
// Prometheus text exposition for readability in snapshots.
func counterKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labels[k])
		b.WriteString(`"`)
	}
	b.WriteString("}")
	return b.String()
}
