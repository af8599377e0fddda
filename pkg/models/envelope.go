package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampFormat is the wire and storage format for envelope timestamps:
// ISO-8601 UTC with fixed millisecond precision. Fixed width keeps
// lexicographic order equal to chronological order in text columns.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ErrorKindSuffix marks the kind of a record whose write represents a
// failed action. kind ends with the suffix iff level == LevelError.
const ErrorKindSuffix = "_error"

// Log levels for an envelope.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Envelope is the record every store persists for a logged action. It is
// created once on write and never mutated; per-store copies may lag or
// expire but the relational row is authoritative for the identity fields.
type Envelope struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	OperationID    string          `json:"operationId"`
	Kind           string          `json:"kind"`
	Level          string          `json:"level"`
	SessionID      string          `json:"session_id"`
	Who            string          `json:"who,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Stores         []string        `json:"stores,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Backfilled     bool            `json:"backfilled,omitempty"`
	BackfilledAt   *time.Time      `json:"backfilled_at,omitempty"`
}

// KindFor derives the kind tag from a canonical operation id and a level.
func KindFor(operationID, level string) string {
	if level == LevelError {
		return operationID + ErrorKindSuffix
	}
	return operationID
}

// OperationFromKind strips the error suffix, recovering the operation id
// for rows where only the kind column survived (legacy schema).
func OperationFromKind(kind string) string {
	return strings.TrimSuffix(kind, ErrorKindSuffix)
}

// NormalizeTags deduplicates and sorts tags. Tags have set semantics; the
// sorted form keeps serialized envelopes comparable.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// FormatTimestamp renders t in the storage format (UTC, fixed millis).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp accepts the storage format plus common RFC3339 variants
// found in legacy rows.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{TimestampFormat, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// EmbedText builds the text summary handed to the embedding layer: the
// operation, kind, tags and a flattened view of the payload's top-level
// string and number fields. Deterministic for a given envelope.
func (e *Envelope) EmbedText() string {
	var b strings.Builder
	b.WriteString(e.OperationID)
	if e.Kind != e.OperationID {
		b.WriteString(" ")
		b.WriteString(e.Kind)
	}
	for _, t := range e.Tags {
		b.WriteString(" ")
		b.WriteString(t)
	}
	if len(e.Payload) > 0 {
		var m map[string]any
		if err := json.Unmarshal(e.Payload, &m); err == nil {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				switch v := m[k].(type) {
				case string:
					b.WriteString(" ")
					b.WriteString(v)
				case float64:
					fmt.Fprintf(&b, " %s=%g", k, v)
				}
			}
		}
	}
	return b.String()
}

// ObjectKey is the object-store key for an envelope:
// logs/<kind>/<YYYY-MM-DD>/<id>.json.
func (e *Envelope) ObjectKey() string {
	day := e.Timestamp.UTC().Format("2006-01-02")
	return fmt.Sprintf("logs/%s/%s/%s.json", e.Kind, day, e.ID)
}

// Clone returns a deep copy safe to mutate (backfill markers) without
// touching the original.
func (e *Envelope) Clone() *Envelope {
	out := *e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Stores != nil {
		out.Stores = append([]string(nil), e.Stores...)
	}
	if e.Payload != nil {
		out.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.BackfilledAt != nil {
		t := *e.BackfilledAt
		out.BackfilledAt = &t
	}
	return &out
}

// MarshalJSON emits timestamps in the storage format rather than Go's
// default RFC3339Nano so every persisted copy carries the same text.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	aux := struct {
		alias
		Timestamp    string  `json:"timestamp"`
		BackfilledAt *string `json:"backfilled_at,omitempty"`
	}{alias: alias(e), Timestamp: FormatTimestamp(e.Timestamp)}
	if e.BackfilledAt != nil {
		s := FormatTimestamp(*e.BackfilledAt)
		aux.BackfilledAt = &s
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts both the storage format and RFC3339 timestamps.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	aux := struct {
		*alias
		Timestamp    string  `json:"timestamp"`
		BackfilledAt *string `json:"backfilled_at,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != "" {
		t, err := ParseTimestamp(aux.Timestamp)
		if err != nil {
			return err
		}
		e.Timestamp = t
	}
	if aux.BackfilledAt != nil {
		t, err := ParseTimestamp(*aux.BackfilledAt)
		if err != nil {
			return err
		}
		e.BackfilledAt = &t
	}
	return nil
}
