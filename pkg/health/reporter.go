package health

import (
	"context"
	"fmt"
	"time"

	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/registry"
)

// deepCheckBudget bounds the whole /health/stores probe pass.
const deepCheckBudget = 5 * time.Second

// Checker is the probe surface every store adapter exposes.
type Checker interface {
	Healthcheck(ctx context.Context) error
}

// BreakerSource provides the persisted breaker states.
type BreakerSource interface {
	Snapshot(ctx context.Context) map[models.StoreTag]breaker.State
}

// Liveness is the /health/live document.
type Liveness struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Readiness is the /health/ready document. Always served with HTTP 200;
// consumers gate on the Ready field.
type Readiness struct {
	Ready        bool                       `json:"ready"`
	Stores       map[models.StoreTag]string `json:"stores"`
	Breakers     map[models.StoreTag]bool   `json:"breakers"`
	RecentErrors int                        `json:"recent_errors"`
	ErrorRate    float64                    `json:"error_rate"`
	Reasons      []string                   `json:"reasons,omitempty"`
	Timestamp    string                     `json:"timestamp"`
}

// StoreCheck is one deep probe result.
type StoreCheck struct {
	Bound       bool   `json:"bound"`
	Healthy     bool   `json:"healthy"`
	LatencyMS   int64  `json:"latency_ms"`
	BreakerOpen bool   `json:"breaker_open"`
	Error       string `json:"error,omitempty"`
}

// StoresReport is the /health/stores document.
type StoresReport struct {
	Stores     map[models.StoreTag]StoreCheck `json:"stores"`
	Operations int                            `json:"operations"`
	Timestamp  string                         `json:"timestamp"`
}

// Reporter builds the three health documents.
type Reporter struct {
	version      string
	maxErrorRate float64

	tracker  *Tracker
	breakers BreakerSource
	registry *registry.Registry

	checkers map[models.StoreTag]Checker

	now func() time.Time
}

// Options wires the reporter. A nil checker marks the store unbound.
type Options struct {
	Version      string
	MaxErrorRate float64
	Tracker      *Tracker
	Breakers     BreakerSource
	Registry     *registry.Registry
	Rel          Checker
	KV           Checker
	Obj          Checker
	Vec          Checker
}

// New creates a reporter.
func New(opts Options) *Reporter {
	if opts.MaxErrorRate <= 0 {
		opts.MaxErrorRate = 0.5
	}
	return &Reporter{
		version:      opts.Version,
		maxErrorRate: opts.MaxErrorRate,
		tracker:      opts.Tracker,
		breakers:     opts.Breakers,
		registry:     opts.Registry,
		checkers: map[models.StoreTag]Checker{
			models.StoreRel: opts.Rel,
			models.StoreKV:  opts.KV,
			models.StoreObj: opts.Obj,
			models.StoreVec: opts.Vec,
		},
		now: time.Now,
	}
}

// Live reports process liveness. No I/O.
func (r *Reporter) Live() Liveness {
	return Liveness{
		Status:    "healthy",
		Timestamp: models.FormatTimestamp(r.now().UTC()),
		Version:   r.version,
	}
}

// Ready folds breaker state, the write error rate, and store bindings
// into the readiness verdict. Checks no store I/O beyond the breaker
// snapshot read.
func (r *Reporter) Ready(ctx context.Context) Readiness {
	out := Readiness{
		Stores:    make(map[models.StoreTag]string, len(r.checkers)),
		Breakers:  make(map[models.StoreTag]bool, len(r.checkers)),
		Timestamp: models.FormatTimestamp(r.now().UTC()),
		Ready:     true,
	}

	for store, checker := range r.checkers {
		if checker == nil {
			out.Stores[store] = "unbound"
		} else {
			out.Stores[store] = "bound"
		}
	}
	// An unbound Rel store can never take writes.
	if r.checkers[models.StoreRel] == nil {
		out.Ready = false
		out.Reasons = append(out.Reasons, "relational store unbound")
	}

	states := r.breakers.Snapshot(ctx)
	for store, state := range states {
		out.Breakers[store] = state.IsOpen
		if state.IsOpen {
			out.Ready = false
			out.Reasons = append(out.Reasons, fmt.Sprintf("circuit breaker open for %s", store))
		}
	}

	successes, errors := r.tracker.Stats()
	out.RecentErrors = errors
	rate := 0.0
	if successes+errors > 0 {
		rate = float64(errors) / float64(successes+errors)
	}
	out.ErrorRate = rate
	if rate >= r.maxErrorRate && errors > 0 {
		out.Ready = false
		out.Reasons = append(out.Reasons, fmt.Sprintf("write error rate %.2f over threshold %.2f", rate, r.maxErrorRate))
	}

	return out
}

// Stores runs a deep probe against every bound adapter with a shared
// time budget.
func (r *Reporter) Stores(ctx context.Context) StoresReport {
	ctx, cancel := context.WithTimeout(ctx, deepCheckBudget)
	defer cancel()

	states := r.breakers.Snapshot(ctx)

	out := StoresReport{
		Stores:     make(map[models.StoreTag]StoreCheck, len(r.checkers)),
		Operations: r.registry.Count(),
		Timestamp:  models.FormatTimestamp(r.now().UTC()),
	}

	for store, checker := range r.checkers {
		check := StoreCheck{BreakerOpen: states[store].IsOpen}

		if checker == nil {
			out.Stores[store] = check
			continue
		}
		check.Bound = true

		start := r.now()
		err := checker.Healthcheck(ctx)
		check.LatencyMS = r.now().Sub(start).Milliseconds()

		if err != nil {
			check.Error = err.Error()
		} else {
			check.Healthy = true
		}
		out.Stores[store] = check
	}

	return out
}
