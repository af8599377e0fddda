package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for the logging core. Generic keys follow
// OpenTelemetry semantic conventions where applicable; domain keys use the
// "log." prefix.
const (
	// Client attributes
	AttrClientIP  = "client.ip"
	AttrSessionID = "log.session_id"

	// Domain attributes
	AttrOperation  = "log.operation"
	AttrLogID      = "log.id"
	AttrKind       = "log.kind"
	AttrLevel      = "log.level"
	AttrStore      = "log.store"
	AttrOutcome    = "log.outcome"
	AttrPolicy     = "log.r2_policy"
	AttrIdempotent = "log.idempotent_hit"
	AttrBackfilled = "log.backfilled"

	// Reconciler attributes
	AttrWindowHours = "reconcile.window_hours"
	AttrDryRun      = "reconcile.dry_run"
	AttrAnalyzed    = "reconcile.analyzed"
	AttrConsistency = "reconcile.consistency"

	// Storage backend attributes
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names. Format: <component>.<operation>.
const (
	SpanWrite         = "writer.write"
	SpanStoreWrite    = "store.write"
	SpanReconcile     = "reconciler.run"
	SpanReconcileScan = "reconciler.scan"
	SpanBackfill      = "reconciler.backfill"
	SpanReadRecent    = "reader.recent"
	SpanReadSession   = "reader.by_session"
	SpanSearch        = "reader.search"
)

// Operation returns an attribute for the canonical operation id
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// LogID returns an attribute for the envelope id
func LogID(id string) attribute.KeyValue {
	return attribute.String(AttrLogID, id)
}

// SessionID returns an attribute for the session grouping key
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Store returns an attribute for a store tag (rel, kv, obj, vec)
func Store(tag string) attribute.KeyValue {
	return attribute.String(AttrStore, tag)
}

// Outcome returns an attribute for a per-store outcome
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// Policy returns an attribute for the object-store policy
func Policy(policy string) attribute.KeyValue {
	return attribute.String(AttrPolicy, policy)
}

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// Bucket returns an attribute for the object-store bucket
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartWriteSpan starts the root span for one fan-out write.
func StartWriteSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Operation(operation)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanWrite, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a single store adapter call.
func StartStoreSpan(ctx context.Context, store string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Store(store)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanStoreWrite, trace.WithAttributes(allAttrs...))
}

// StartReconcileSpan starts the root span for a reconciler pass.
func StartReconcileSpan(ctx context.Context, windowHours int, dryRun bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReconcile, trace.WithAttributes(
		attribute.Int(AttrWindowHours, windowHours),
		attribute.Bool(AttrDryRun, dryRun),
	))
}
