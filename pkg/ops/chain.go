package ops

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/ratelimit"
)

type contextKey string

// canaryKey carries the cohort decision for downstream handlers.
const canaryKey contextKey = "ops.in_canary"

// InCanary reports whether the request was assigned to the canary cohort.
func InCanary(ctx context.Context) bool {
	v, _ := ctx.Value(canaryKey).(bool)
	return v
}

// Limiter is the slice of the rate limiter the chain uses.
type Limiter interface {
	Allow(ctx context.Context, identity string) ratelimit.Decision
}

// Chain is the admission middleware with live-reloadable flags.
type Chain struct {
	flags    *flagStore
	limiter  Limiter
	counters *metrics.Counters
}

// NewChain creates the chain. limiter may be nil (rate limiting becomes a
// no-op regardless of flags).
func NewChain(flags Flags, limiter Limiter, counters *metrics.Counters) *Chain {
	return &Chain{
		flags:    newFlagStore(flags),
		limiter:  limiter,
		counters: counters,
	}
}

// UpdateFlags swaps the live snapshot (config hot-reload).
func (c *Chain) UpdateFlags(flags Flags) {
	c.flags.store(flags)
}

// Flags returns the current snapshot.
func (c *Chain) Flags() Flags {
	return c.flags.load()
}

// Middleware returns the chi-compatible handler wrapper. Order within one
// request: security headers and CORS on the response path, kill switch,
// canary assignment, rate limit, size cap, inner handler. Every rejection
// still carries the security headers.
func (c *Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flags := c.flags.load()

		c.applySecurityHeaders(w, &flags)
		if done := c.applyCORS(w, r, &flags); done {
			return
		}

		if flags.DisableNewMW {
			next.ServeHTTP(w, r)
			return
		}

		inCanary := false
		if flags.EnableCanary {
			inCanary = cohortHash(r) < flags.CanaryPercent
			r = r.WithContext(context.WithValue(r.Context(), canaryKey, inCanary))
		}

		if c.limiter != nil && (flags.EnableRateLimit || inCanary) {
			identity := Identity(r)
			if d := c.limiter.Allow(r.Context(), identity); !d.Allowed {
				c.counters.Inc(metrics.RateLimitExceededTotal, map[string]string{"identifier": identity})
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		if r.ContentLength > 0 && flags.ReqSizeBytes > 0 && r.ContentLength > flags.ReqSizeBytes {
			c.counters.Inc(metrics.RequestSizeExceededTotal, nil)
			if flags.EnableReqSizeCap || inCanary {
				writeJSONError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", flags.ReqSizeBytes))
				return
			}
			logger.Warn("Oversized request accepted, size cap not enforced",
				"content_length", r.ContentLength, "limit", flags.ReqSizeBytes)
		}

		next.ServeHTTP(w, r)
	})
}

// applySecurityHeaders attaches the standard headers before any write.
func (c *Chain) applySecurityHeaders(w http.ResponseWriter, flags *Flags) {
	if !flags.EnableSecurityHeaders {
		return
	}
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	if flags.EnableHSTS {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// applyCORS handles the allow-list and preflight. An empty list means no
// CORS headers at all; a "*" entry allows every origin. Returns true when
// the request was a handled preflight.
func (c *Chain) applyCORS(w http.ResponseWriter, r *http.Request, flags *Flags) bool {
	if len(flags.CORSAllowOrigins) == 0 {
		return false
	}

	origin := r.Header.Get("Origin")
	if origin != "" && originAllowed(origin, flags.CORSAllowOrigins) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Session-Id")
		h.Set("Vary", "Origin")
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// writeJSONError emits the chain's own rejection body. Handler-level
// errors go through the API response helpers; the chain runs before the
// router and keeps its own minimal form.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
