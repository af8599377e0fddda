package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so
// log aggregation can query across the write path, the reconciler, and the
// HTTP surface.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request scope
	KeyRequestID = "request_id"
	KeySessionID = "session_id"
	KeyClientIP  = "client_ip"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"

	// Domain
	KeyOperation = "operation"
	KeyLogID     = "log_id"
	KeyKind      = "kind"
	KeyStore     = "store"
	KeyOutcome   = "outcome"
	KeyPolicy    = "policy"
	KeyBucket    = "bucket"
	KeyKey       = "key"

	// Measurements
	KeyDurationMs = "duration_ms"
	KeyCount      = "count"
	KeyLimit      = "limit"
	KeyBytes      = "bytes"

	// Errors
	KeyError = "error"
)

// Err returns a standard error attribute, tolerating nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// F formats a value for field positions that want strings.
func F(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
