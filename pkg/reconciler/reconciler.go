// Package reconciler restores cross-store consistency. The relational
// store is ground truth: every row in the window is checked for presence
// in KV, Vec and Obj, and missing copies are backfilled with an explicit
// marker. Safe to run concurrently with live writes because per-id writes
// are idempotent upserts and live Rel writes only extend the next window.
package reconciler

import (
	"context"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/internal/telemetry"
	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/registry"
)

// Consistency is the verdict of one run.
type Consistency string

const (
	// ConsistencyPerfect: no copies were missing.
	ConsistencyPerfect Consistency = "perfect"

	// ConsistencyRestored: copies were missing and all were backfilled.
	ConsistencyRestored Consistency = "restored"

	// ConsistencyDegraded: copies are still missing (dry run, backfill
	// failures, or an open breaker).
	ConsistencyDegraded Consistency = "degraded"
)

// Params controls one run.
type Params struct {
	// WindowHours is the Rel lookback window.
	WindowHours int

	// DryRun analyzes without writing.
	DryRun bool
}

// Summary is the result of one run.
type Summary struct {
	Analyzed    int                          `json:"analyzed"`
	Missing     map[models.StoreTag]int      `json:"missing_counts"`
	MissingIDs  map[models.StoreTag][]string `json:"missing_ids,omitempty"`
	Backfilled  int                          `json:"backfilled"`
	Failed      int                          `json:"failed"`
	DryRun      bool                         `json:"dry_run"`
	WindowHours int                          `json:"window_hours"`
	Consistency Consistency                  `json:"consistency"`
	Duration    time.Duration                `json:"-"`
}

// Store surfaces the reconciler needs per layer.
type (
	// RelSource provides the ground-truth window.
	RelSource interface {
		Window(ctx context.Context, from, to time.Time) ([]*models.Envelope, error)
	}

	// KVTarget is the mirror store.
	KVTarget interface {
		HasLog(ctx context.Context, id string) (bool, error)
		WriteLog(ctx context.Context, e *models.Envelope) error
	}

	// ObjTarget is the archive store.
	ObjTarget interface {
		Exists(ctx context.Context, key string) (bool, error)
		WriteLog(ctx context.Context, e *models.Envelope) error
	}

	// VecTarget is the semantic index.
	VecTarget interface {
		Has(ctx context.Context, id string) (bool, error)
		Write(ctx context.Context, e *models.Envelope) error
	}
)

// Breaker is the slice of the circuit breaker consulted before touching a
// secondary store. A store with an open breaker is left alone for the next
// pass rather than hammered mid-incident.
type Breaker interface {
	Check(ctx context.Context, store models.StoreTag) breaker.Decision
	RecordFailure(ctx context.Context, store models.StoreTag)
	RecordSuccess(ctx context.Context, store models.StoreTag)
}

// Reconciler diffs Rel against the secondary stores and backfills.
type Reconciler struct {
	registry *registry.Registry
	counters *metrics.Counters
	breaker  Breaker

	rel RelSource
	kv  KVTarget
	obj ObjTarget
	vec VecTarget

	now func() time.Time
}

// Options wires the reconciler. Unbound targets (nil) are skipped. Breaker
// may be nil (no skipping).
type Options struct {
	Registry *registry.Registry
	Counters *metrics.Counters
	Breaker  Breaker
	Rel      RelSource
	KV       KVTarget
	Obj      ObjTarget
	Vec      VecTarget
}

// New creates a reconciler.
func New(opts Options) *Reconciler {
	return &Reconciler{
		registry: opts.Registry,
		counters: opts.Counters,
		breaker:  opts.Breaker,
		rel:      opts.Rel,
		kv:       opts.KV,
		obj:      opts.Obj,
		vec:      opts.Vec,
		now:      time.Now,
	}
}

// Run executes one reconciliation pass. Cancellation is honored between
// records, never inside a single store call.
func (r *Reconciler) Run(ctx context.Context, params Params) (*Summary, error) {
	if params.WindowHours <= 0 {
		params.WindowHours = 24
	}

	ctx, span := telemetry.StartReconcileSpan(ctx, params.WindowHours, params.DryRun)
	defer span.End()

	start := r.now()
	to := start
	from := to.Add(-time.Duration(params.WindowHours) * time.Hour)

	rows, err := r.rel.Window(ctx, from, to)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	summary := &Summary{
		Analyzed:    len(rows),
		Missing:     make(map[models.StoreTag]int),
		MissingIDs:  make(map[models.StoreTag][]string),
		DryRun:      params.DryRun,
		WindowHours: params.WindowHours,
	}

	skip := r.openBreakers(ctx)

	for _, e := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.reconcileOne(ctx, e, params.DryRun, skip, summary)
	}

	totalMissing := 0
	for _, n := range summary.Missing {
		totalMissing += n
	}
	switch {
	case len(skip) > 0:
		// A skipped store may hold missing copies this pass never saw.
		summary.Consistency = ConsistencyDegraded
	case totalMissing == 0:
		summary.Consistency = ConsistencyPerfect
	case !params.DryRun && summary.Backfilled == totalMissing:
		summary.Consistency = ConsistencyRestored
	default:
		summary.Consistency = ConsistencyDegraded
	}

	summary.Duration = r.now().Sub(start)

	logger.Info("Reconciliation pass complete",
		"analyzed", summary.Analyzed,
		"missing_kv", summary.Missing[models.StoreKV],
		"missing_vec", summary.Missing[models.StoreVec],
		"missing_obj", summary.Missing[models.StoreObj],
		"backfilled", summary.Backfilled,
		"consistency", summary.Consistency,
		"dry_run", params.DryRun,
	)

	return summary, nil
}

// openBreakers reports which bound stores have an open breaker. Checked once
// per pass; a breaker that opens mid-pass is caught by the backfill failures
// it causes and by the next pass.
func (r *Reconciler) openBreakers(ctx context.Context) map[models.StoreTag]bool {
	if r.breaker == nil {
		return nil
	}

	bound := map[models.StoreTag]bool{
		models.StoreKV:  r.kv != nil,
		models.StoreVec: r.vec != nil,
		models.StoreObj: r.obj != nil,
	}

	skip := make(map[models.StoreTag]bool)
	for store, isBound := range bound {
		if !isBound {
			continue
		}
		if d := r.breaker.Check(ctx, store); d.ShouldSkip {
			logger.Warn("Store breaker open, leaving its copies for the next pass", "store", store)
			skip[store] = true
		}
	}
	if len(skip) == 0 {
		return nil
	}
	return skip
}

// reconcileOne checks a single envelope against every bound target whose
// breaker allows I/O.
func (r *Reconciler) reconcileOne(ctx context.Context, e *models.Envelope, dryRun bool, skip map[models.StoreTag]bool, summary *Summary) {
	if r.kv != nil && !skip[models.StoreKV] {
		present, err := r.kv.HasLog(ctx, e.ID)
		if err != nil {
			logger.Warn("KV presence check failed", "log_id", e.ID, "error", err)
		} else if !present {
			r.record(ctx, summary, models.StoreKV, e, dryRun, func(env *models.Envelope) error {
				return r.kv.WriteLog(ctx, env)
			})
		}
	}

	if r.vec != nil && !skip[models.StoreVec] {
		present, err := r.vec.Has(ctx, e.ID)
		if err != nil {
			logger.Warn("Vector presence check failed", "log_id", e.ID, "error", err)
		} else if !present {
			r.record(ctx, summary, models.StoreVec, e, dryRun, func(env *models.Envelope) error {
				return r.vec.Write(ctx, env)
			})
		}
	}

	// Operations whose policy is none never have an archive copy.
	if r.obj != nil && !skip[models.StoreObj] && r.registry.R2Policy(e.OperationID) != models.R2None {
		present, err := r.obj.Exists(ctx, e.ObjectKey())
		if err != nil {
			logger.Warn("Object presence check failed", "log_id", e.ID, "error", err)
		} else if !present {
			r.record(ctx, summary, models.StoreObj, e, dryRun, func(env *models.Envelope) error {
				return r.obj.WriteLog(ctx, env)
			})
		}
	}
}

// record registers one missing copy and backfills it unless dry-running.
// The backfilled envelope carries the marker so downstream consumers can
// tell a repaired copy from an original.
func (r *Reconciler) record(ctx context.Context, summary *Summary, store models.StoreTag, e *models.Envelope, dryRun bool, write func(*models.Envelope) error) {
	summary.Missing[store]++
	summary.MissingIDs[store] = append(summary.MissingIDs[store], e.ID)

	if dryRun {
		return
	}

	env := e.Clone()
	env.Backfilled = true
	at := r.now().UTC()
	env.BackfilledAt = &at

	if err := write(env); err != nil {
		summary.Failed++
		if r.breaker != nil {
			r.breaker.RecordFailure(ctx, store)
		}
		logger.Warn("Backfill failed", "store", store, "log_id", e.ID, "error", err)
		return
	}

	summary.Backfilled++
	if r.breaker != nil {
		r.breaker.RecordSuccess(ctx, store)
	}
	r.counters.Inc(metrics.ReconcileBackfillsTotal, map[string]string{"store": string(store)})
}
