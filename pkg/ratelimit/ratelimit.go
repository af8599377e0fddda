// Package ratelimit implements the per-identity token bucket. Buckets live
// in the KV store under rate_limit:<identity> so every instance sharing the
// store sees the same budget; the read-modify-write is last-writer-wins,
// which is acceptable for statistical admission control.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/models"
)

const (
	// RetryAfter is the value returned to denied clients.
	RetryAfter = 60 * time.Second

	// bucketTTL expires idle buckets. Any bucket older than this would
	// refill to full anyway.
	bucketTTL = 10 * time.Minute
)

// KeyFor returns the KV key for an identity's bucket.
func KeyFor(identity string) string {
	return "rate_limit:" + identity
}

// bucket is the persisted token bucket document.
type bucket struct {
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// Settings are the live-tunable knobs.
type Settings struct {
	// RPS is the refill rate, expressed against a 60-second window: a
	// bucket gains elapsedSeconds*RPS/60 tokens. The divide-by-60 is
	// load-bearing; changing the interpretation silently redefines every
	// configured default.
	RPS int

	// Burst is the bucket capacity.
	Burst int
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration

	// Remaining is the token count after this request (informational).
	Remaining float64
}

// KV is the slice of the key-value store the limiter needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Limiter is the shared token-bucket admission check.
type Limiter struct {
	kv       KV
	settings atomic.Pointer[Settings]

	now func() time.Time
}

// New creates a limiter over the given KV store. kv may be nil: without it
// no bucket persists and every request is admitted.
func New(kv KV, settings Settings) *Limiter {
	l := &Limiter{
		kv:  kv,
		now: time.Now,
	}
	l.settings.Store(&settings)
	return l
}

// UpdateSettings swaps the live settings (config hot-reload).
func (l *Limiter) UpdateSettings(settings Settings) {
	l.settings.Store(&settings)
}

// Allow loads (or synthesizes) the identity's bucket, refills it, and
// consumes one token. A denied request gets a Retry-After hint. Any KV
// failure fails open: admission control must never take the service down
// with it.
func (l *Limiter) Allow(ctx context.Context, identity string) Decision {
	settings := l.settings.Load()
	now := l.now()

	b, err := l.load(ctx, identity)
	if err != nil {
		logger.Warn("Rate bucket unavailable, failing open", "identity", identity, "error", err)
		return Decision{Allowed: true}
	}
	if b == nil {
		b = &bucket{Tokens: float64(settings.Burst), LastRefill: now}
	}

	elapsed := now.Sub(b.LastRefill).Seconds()
	if elapsed > 0 {
		b.Tokens += elapsed * float64(settings.RPS) / 60
		if b.Tokens > float64(settings.Burst) {
			b.Tokens = float64(settings.Burst)
		}
		b.LastRefill = now
	}

	if b.Tokens <= 0 {
		// Persist the refill so the deny does not lose accumulated tokens.
		l.save(ctx, identity, b)
		return Decision{Allowed: false, RetryAfter: RetryAfter}
	}

	b.Tokens--
	l.save(ctx, identity, b)

	return Decision{Allowed: true, Remaining: b.Tokens}
}

func (l *Limiter) load(ctx context.Context, identity string) (*bucket, error) {
	// No KV binding means no persisted buckets: every request synthesizes
	// a full bucket and is admitted, which is the fail-open posture.
	if l.kv == nil {
		return nil, nil
	}

	data, err := l.kv.Get(ctx, KeyFor(identity))
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var b bucket
	if err := json.Unmarshal(data, &b); err != nil {
		// Corrupt bucket synthesizes fresh rather than locking the
		// identity out.
		return nil, nil
	}
	return &b, nil
}

func (l *Limiter) save(ctx context.Context, identity string, b *bucket) {
	if l.kv == nil {
		return
	}

	data, err := json.Marshal(b)
	if err != nil {
		logger.Warn("Rate bucket not persisted", "identity", identity, "error", fmt.Errorf("marshal: %w", err))
		return
	}
	if err := l.kv.Set(ctx, KeyFor(identity), data, bucketTTL); err != nil {
		logger.Warn("Rate bucket not persisted", "identity", identity, "error", err)
	}
}
