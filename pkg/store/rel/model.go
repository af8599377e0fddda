package rel

import (
	"encoding/json"
	"fmt"

	"github.com/aquilhq/actionlog/pkg/models"
)

// logRow is the current schema: one row per logged action. Timestamps are
// TEXT in fixed-millisecond ISO-8601 so lexicographic order matches
// chronological order; detail and tags are serialized JSON.
type logRow struct {
	ID             string `gorm:"column:id;primaryKey"`
	Timestamp      string `gorm:"column:timestamp;index:idx_metamorphic_logs_timestamp"`
	Kind           string `gorm:"column:kind;index:idx_metamorphic_logs_kind"`
	Detail         string `gorm:"column:detail"`
	SessionID      string `gorm:"column:session_id;index:idx_metamorphic_logs_session"`
	Voice          string `gorm:"column:voice"`
	SignalStrength string `gorm:"column:signal_strength"`
	Tags           string `gorm:"column:tags"`
}

func (logRow) TableName() string { return currentTable }

// eventRow is the legacy schema, read-only. Column mapping to the current
// schema: ts -> timestamp, type -> kind, payload -> detail.
type eventRow struct {
	ID        string `gorm:"column:id;primaryKey"`
	TS        string `gorm:"column:ts"`
	Type      string `gorm:"column:type"`
	Payload   string `gorm:"column:payload"`
	SessionID string `gorm:"column:session_id"`
}

func (eventRow) TableName() string { return legacyTable }

const (
	currentTable = "metamorphic_logs"
	legacyTable  = "event_log"
)

// detailDoc is the JSON document stored in the detail column. It carries the
// envelope fields that have no dedicated column.
type detailDoc struct {
	OperationID    string          `json:"operationId"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Backfilled     bool            `json:"backfilled,omitempty"`
	BackfilledAt   *string         `json:"backfilled_at,omitempty"`
}

// rowFromEnvelope maps an envelope onto the current schema.
func rowFromEnvelope(e *models.Envelope) (*logRow, error) {
	doc := detailDoc{
		OperationID:    e.OperationID,
		Payload:        e.Payload,
		IdempotencyKey: e.IdempotencyKey,
		Backfilled:     e.Backfilled,
	}
	if e.BackfilledAt != nil {
		s := models.FormatTimestamp(*e.BackfilledAt)
		doc.BackfilledAt = &s
	}

	detail, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detail: %w", err)
	}

	var tags []byte
	if len(e.Tags) > 0 {
		tags, err = json.Marshal(e.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
	}

	return &logRow{
		ID:             e.ID,
		Timestamp:      models.FormatTimestamp(e.Timestamp),
		Kind:           e.Kind,
		Detail:         string(detail),
		SessionID:      e.SessionID,
		Voice:          e.Who,
		SignalStrength: e.Level,
		Tags:           string(tags),
	}, nil
}

// envelopeFromRow reconstructs an envelope from a current-schema row.
// Malformed detail JSON degrades to an envelope without payload rather than
// failing the read.
func envelopeFromRow(r *logRow) (*models.Envelope, error) {
	ts, err := models.ParseTimestamp(r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", r.ID, err)
	}

	e := &models.Envelope{
		ID:        r.ID,
		Timestamp: ts,
		Kind:      r.Kind,
		Level:     r.SignalStrength,
		SessionID: r.SessionID,
		Who:       r.Voice,
	}

	var doc detailDoc
	if r.Detail != "" && json.Unmarshal([]byte(r.Detail), &doc) == nil {
		e.OperationID = doc.OperationID
		e.Payload = doc.Payload
		e.IdempotencyKey = doc.IdempotencyKey
		e.Backfilled = doc.Backfilled
		if doc.BackfilledAt != nil {
			if at, perr := models.ParseTimestamp(*doc.BackfilledAt); perr == nil {
				e.BackfilledAt = &at
			}
		}
	}
	if e.OperationID == "" {
		e.OperationID = models.OperationFromKind(r.Kind)
	}
	if e.Level == "" {
		e.Level = models.LevelInfo
	}

	if r.Tags != "" {
		var tags []string
		if json.Unmarshal([]byte(r.Tags), &tags) == nil {
			e.Tags = models.NormalizeTags(tags)
		}
	}

	return e, nil
}

// envelopeFromEventRow reconstructs an envelope from a legacy-schema row.
// The legacy payload column maps to the envelope payload wholesale; operation
// and level are recovered from the type column.
func envelopeFromEventRow(r *eventRow) (*models.Envelope, error) {
	ts, err := models.ParseTimestamp(r.TS)
	if err != nil {
		return nil, fmt.Errorf("legacy row %s: %w", r.ID, err)
	}

	level := models.LevelInfo
	if r.Type != models.OperationFromKind(r.Type) {
		level = models.LevelError
	}

	e := &models.Envelope{
		ID:          r.ID,
		Timestamp:   ts,
		Kind:        r.Type,
		OperationID: models.OperationFromKind(r.Type),
		Level:       level,
		SessionID:   r.SessionID,
	}

	if r.Payload != "" && json.Valid([]byte(r.Payload)) {
		e.Payload = json.RawMessage(r.Payload)
	}

	return e, nil
}
