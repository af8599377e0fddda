package rel

import (
	"context"
	"sync"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/models"
)

// probeTTL bounds how long a schema-existence answer is trusted. A schema
// migration lands within one TTL without restarting readers.
const probeTTL = 60 * time.Second

// schemaProbe caches whether the current-schema table exists so reads do not
// hit the catalog on every request.
type schemaProbe struct {
	mu         sync.Mutex
	checkedAt  time.Time
	hasCurrent bool
}

// hasCurrentSchema reports whether the current-schema table exists, probing
// at most once per TTL.
func (s *Store) hasCurrentSchema(ctx context.Context) bool {
	s.probe.mu.Lock()
	defer s.probe.mu.Unlock()

	if !s.probe.checkedAt.IsZero() && time.Since(s.probe.checkedAt) < probeTTL {
		return s.probe.hasCurrent
	}

	has := s.db.WithContext(ctx).Migrator().HasTable(currentTable)
	s.probe.checkedAt = time.Now()
	if has != s.probe.hasCurrent {
		logger.Info("Log schema detection changed", "table", currentTable, "present", has)
	}
	s.probe.hasCurrent = has

	return has
}

// byIDLegacy reads a single record from the legacy schema.
func (s *Store) byIDLegacy(ctx context.Context, id string) (*models.Envelope, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrRecordNotFound)
	}

	return envelopeFromEventRow(&row)
}

// recentLegacy serves a recent query from the legacy schema with the column
// aliasing applied by envelopeFromEventRow.
func (s *Store) recentLegacy(ctx context.Context, limit int, since time.Time, sessionID string) ([]*models.Envelope, error) {
	q := s.db.WithContext(ctx).Order("ts DESC").Limit(limit)
	if !since.IsZero() {
		q = q.Where("ts > ?", models.FormatTimestamp(since))
	}
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}

	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*models.Envelope, 0, len(rows))
	for i := range rows {
		e, err := envelopeFromEventRow(&rows[i])
		if err != nil {
			logger.Warn("Skipping malformed legacy row", "log_id", rows[i].ID, "error", err)
			continue
		}
		out = append(out, e)
	}

	return out, nil
}
