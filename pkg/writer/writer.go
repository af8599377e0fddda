// Package writer implements the write coordinator: canonicalize the
// operation, enforce idempotency, fan out to the four stores concurrently,
// aggregate per-store outcomes, and emit counters. The relational write is
// the only fatal one; everything else degrades into the per-store outcome
// map the client receives.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/internal/telemetry"
	"github.com/aquilhq/actionlog/pkg/breaker"
	"github.com/aquilhq/actionlog/pkg/idempotency"
	"github.com/aquilhq/actionlog/pkg/metrics"
	"github.com/aquilhq/actionlog/pkg/models"
	"github.com/aquilhq/actionlog/pkg/registry"
)

// DefaultStoreTimeout bounds each individual store write during fan-out.
const DefaultStoreTimeout = 10 * time.Second

// Store write surfaces, one per persistence layer. A nil adapter means the
// store is unbound and every write reports the "disabled" outcome.
type (
	// RelStore is the relational durability anchor.
	RelStore interface {
		Write(ctx context.Context, e *models.Envelope) error
	}

	// KVStore mirrors envelopes for fast id lookup.
	KVStore interface {
		WriteLog(ctx context.Context, e *models.Envelope) error
	}

	// ObjStore archives envelopes per the operation's R2 policy.
	ObjStore interface {
		WriteLog(ctx context.Context, e *models.Envelope) error
	}

	// VecStore indexes envelopes for semantic retrieval.
	VecStore interface {
		Write(ctx context.Context, e *models.Envelope) error
	}
)

// Breaker is the slice of the circuit breaker the fan-out consults.
type Breaker interface {
	Check(ctx context.Context, store models.StoreTag) breaker.Decision
	RecordFailure(ctx context.Context, store models.StoreTag)
	RecordSuccess(ctx context.Context, store models.StoreTag)
}

// ResultObserver is notified of every completed write for the readiness
// error-rate window. May be nil.
type ResultObserver interface {
	Observe(success bool)
}

// Request is a parsed action write.
type Request struct {
	OperationID    string
	Level          string
	Who            string
	SessionID      string
	Tags           []string
	Payload        json.RawMessage
	IdempotencyKey string
}

// Result is the coordinator's reply.
type Result struct {
	ID            string                             `json:"logId"`
	OperationID   string                             `json:"operationId"`
	SessionID     string                             `json:"session_id"`
	Stores        []string                           `json:"stores"`
	StoreResults  map[models.StoreTag]models.Outcome `json:"store_results"`
	Status        models.WriteStatus                 `json:"status"`
	IdempotentHit bool                               `json:"idempotent_hit"`
}

// Coordinator runs the write pipeline.
type Coordinator struct {
	registry *registry.Registry
	idem     *idempotency.Service
	breaker  Breaker
	counters *metrics.Counters
	observer ResultObserver

	rel RelStore
	kv  KVStore
	obj ObjStore
	vec VecStore

	storeTimeout time.Duration

	// now and newID are swappable for tests.
	now   func() time.Time
	newID func() string
}

// Options wires the coordinator. Registry, Rel and Breaker are required;
// every other field may be nil (the matching feature degrades).
type Options struct {
	Registry     *registry.Registry
	Idempotency  *idempotency.Service
	Breaker      Breaker
	Counters     *metrics.Counters
	Observer     ResultObserver
	Rel          RelStore
	KV           KVStore
	Obj          ObjStore
	Vec          VecStore
	StoreTimeout time.Duration
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	return &Coordinator{
		registry:     opts.Registry,
		idem:         opts.Idempotency,
		breaker:      opts.Breaker,
		counters:     opts.Counters,
		observer:     opts.Observer,
		rel:          opts.Rel,
		kv:           opts.KV,
		obj:          opts.Obj,
		vec:          opts.Vec,
		storeTimeout: opts.StoreTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Write runs the full pipeline for one action. The returned error is
// non-nil only for invalid requests and relational durability failure; all
// other store trouble is reported through the per-store outcomes.
func (c *Coordinator) Write(ctx context.Context, req *Request) (*Result, error) {
	op, known := c.registry.ToCanonical(req.OperationID)
	if !known {
		c.counters.Inc(metrics.UnknownOpTotal, map[string]string{"operation": op})
		logger.Debug("Unknown operation accepted as-is", "operation", op)
	}

	ctx, span := telemetry.StartWriteSpan(ctx, op)
	defer span.End()

	level := req.Level
	if level == "" {
		level = models.LevelInfo
	}
	if level != models.LevelInfo && level != models.LevelWarn && level != models.LevelError {
		return nil, fmt.Errorf("%w: invalid level %q", models.ErrBadRequest, req.Level)
	}

	// Idempotent replay: return the first writer's result, touch no store.
	if req.IdempotencyKey != "" {
		if prior := c.idem.Lookup(ctx, req.IdempotencyKey); prior != nil {
			c.counters.Inc(metrics.IdempotencyHitsTotal, nil)
			telemetry.AddEvent(ctx, "idempotency.hit", telemetry.LogID(prior.ID))
			return resultFromRecord(prior), nil
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.newID()
	}

	policy := c.registry.R2Policy(op)

	env := &models.Envelope{
		ID:             c.newID(),
		Timestamp:      c.now().UTC(),
		OperationID:    op,
		Kind:           models.KindFor(op, level),
		Level:          level,
		SessionID:      sessionID,
		Who:            req.Who,
		Tags:           models.NormalizeTags(req.Tags),
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
	}
	telemetry.SetAttributes(ctx, telemetry.LogID(env.ID), telemetry.SessionID(sessionID), telemetry.Policy(string(policy)))

	outcomes := c.fanOut(ctx, env, policy)

	result := &Result{
		ID:           env.ID,
		OperationID:  op,
		SessionID:    sessionID,
		StoreResults: outcomes,
		Stores:       storesWritten(outcomes),
	}

	relFailed := outcomes[models.StoreRel] != models.OutcomeOK
	if c.observer != nil {
		c.observer.Observe(!relFailed)
	}

	if relFailed {
		c.counters.Inc(metrics.ActionErrorTotal, map[string]string{"operation": op})
		err := fmt.Errorf("%w: action %s not durably recorded", models.ErrRelDurability, op)
		telemetry.RecordError(ctx, err)
		// No idempotency record on a failed write: a retry with the same
		// key must execute again.
		return result, err
	}

	result.Status = models.WriteOK
	if policy == models.R2Required && outcomes[models.StoreObj] != models.OutcomeOK {
		// The record exists in Rel; reconciliation will backfill the
		// archive copy.
		result.Status = models.WriteDegraded
	}

	c.counters.Inc(metrics.ActionSuccessTotal, map[string]string{"operation": op})

	if req.IdempotencyKey != "" {
		rec := &idempotency.Record{
			Key:         req.IdempotencyKey,
			OperationID: op,
			CreatedAt:   c.now().UTC(),
			ID:          env.ID,
			SessionID:   sessionID,
			Stores:      result.Stores,
			Status:      result.Status,
		}
		if winner, won := c.idem.Store(ctx, rec); !won {
			// A concurrent writer with the same key beat us; surface the
			// winner's record so replays stay consistent.
			c.counters.Inc(metrics.IdempotencyHitsTotal, nil)
			return resultFromRecord(winner), nil
		}
	}

	return result, nil
}

// fanOut launches the four store writes concurrently and joins them. The
// store calls run on a context detached from request cancellation so a
// platform abort cannot orphan a half-finished fan-out; the per-store
// timeout is the only bound.
func (c *Coordinator) fanOut(ctx context.Context, env *models.Envelope, policy models.R2Policy) map[models.StoreTag]models.Outcome {
	detached := context.WithoutCancel(ctx)

	type task struct {
		store models.StoreTag
		run   func(context.Context) error
		bound bool
	}

	tasks := []task{
		{models.StoreRel, func(ctx context.Context) error { return c.rel.Write(ctx, env) }, c.rel != nil},
		{models.StoreKV, func(ctx context.Context) error { return c.kv.WriteLog(ctx, env) }, c.kv != nil},
		{models.StoreObj, func(ctx context.Context) error { return c.obj.WriteLog(ctx, env) }, c.obj != nil && policy != models.R2None},
		{models.StoreVec, func(ctx context.Context) error { return c.vec.Write(ctx, env) }, c.vec != nil},
	}

	outcomes := make(map[models.StoreTag]models.Outcome, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range tasks {
		if !t.bound {
			outcomes[t.store] = models.OutcomeDisabled
			continue
		}

		wg.Add(1)
		go func(t task) {
			defer wg.Done()

			outcome := c.writeOne(detached, t.store, t.run)

			mu.Lock()
			outcomes[t.store] = outcome
			mu.Unlock()

			telemetry.AddEvent(ctx, "store.write", telemetry.Store(string(t.store)), telemetry.Outcome(string(outcome)))
		}(t)
	}

	wg.Wait()
	return outcomes
}

// writeOne performs a single breaker-guarded, timeout-bounded store write
// and folds the result into breaker state and counters.
func (c *Coordinator) writeOne(ctx context.Context, store models.StoreTag, run func(context.Context) error) models.Outcome {
	if d := c.breaker.Check(ctx, store); d.ShouldSkip {
		return models.OutcomeSkippedBreaker
	}

	callCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	if err := run(callCtx); err != nil {
		logger.Warn("Store write failed", "store", store, "error", err)
		c.breaker.RecordFailure(ctx, store)
		c.counters.Inc(metrics.MissingStoreWriteTotal, map[string]string{"store": string(store)})
		return models.OutcomeError
	}

	c.breaker.RecordSuccess(ctx, store)
	c.counters.Inc(metrics.LogWrittenTotal, map[string]string{"store": string(store)})
	return models.OutcomeOK
}

// storesWritten lists the tags with an ok outcome, in fan-out order.
func storesWritten(outcomes map[models.StoreTag]models.Outcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, store := range models.AllStores() {
		if outcomes[store] == models.OutcomeOK {
			out = append(out, string(store))
		}
	}
	return out
}

func resultFromRecord(rec *idempotency.Record) *Result {
	return &Result{
		ID:            rec.ID,
		OperationID:   rec.OperationID,
		SessionID:     rec.SessionID,
		Stores:        rec.Stores,
		Status:        rec.Status,
		IdempotentHit: true,
	}
}
