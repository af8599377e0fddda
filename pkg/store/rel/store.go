package rel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/models"
)

// Store is the relational adapter: the durability anchor of the write path
// and the source of truth for reconciliation. It supports SQLite and
// PostgreSQL behind the same GORM codebase.
//
// Writes always target the current schema (metamorphic_logs). Reads use the
// current schema when its table exists and otherwise fall back to the legacy
// schema (event_log); the existence probe is cached, never per-read, and the
// two schemas are never queried for the same request.
type Store struct {
	db     *gorm.DB
	config *Config
	probe  schemaProbe
}

// New creates a relational store from the configuration.
//
// For SQLite the schema is created via AutoMigrate; for PostgreSQL the
// embedded SQL migrations run under golang-migrate (advisory-locked, safe
// with concurrent instances). Set auto_migrate: false to attach to a legacy
// database without touching its schema.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		// Ensure parent directory exists for SQLite
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// SQLite pragmas for better concurrent access:
		// - journal_mode(WAL): concurrent readers with a single writer
		// - busy_timeout(5000): wait up to 5 seconds when the database is locked
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent), // Suppress GORM logs by default
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool for PostgreSQL
	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if config.ShouldMigrate() {
		switch config.Type {
		case DatabaseTypeSQLite:
			if err := db.AutoMigrate(&logRow{}); err != nil {
				return nil, fmt.Errorf("failed to run database migration: %w", err)
			}
		case DatabaseTypePostgres:
			if err := runMigrations(ctx, config.Postgres.DSN()); err != nil {
				return nil, fmt.Errorf("failed to run database migration: %w", err)
			}
		}
	}

	return &Store{
		db:     db,
		config: config,
	}, nil
}

// Write inserts the envelope into the current schema. It is the only
// operation on the write path whose failure is fatal for the overall write.
func (s *Store) Write(ctx context.Context, e *models.Envelope) error {
	row, err := rowFromEnvelope(e)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("duplicate log id %s: %w", e.ID, err)
		}
		return fmt.Errorf("failed to insert log row: %w", err)
	}

	return nil
}

// ByID returns the envelope with the given id, or models.ErrRecordNotFound.
func (s *Store) ByID(ctx context.Context, id string) (*models.Envelope, error) {
	if !s.hasCurrentSchema(ctx) {
		return s.byIDLegacy(ctx, id)
	}

	var row logRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrRecordNotFound)
	}

	return envelopeFromRow(&row)
}

// Recent returns up to limit envelopes newest-first. A zero since means no
// lower bound; a non-empty sessionID scopes the result to one session.
// limit <= 0 returns an empty slice without touching the database.
func (s *Store) Recent(ctx context.Context, limit int, since time.Time, sessionID string) ([]*models.Envelope, error) {
	if limit <= 0 {
		return []*models.Envelope{}, nil
	}

	if !s.hasCurrentSchema(ctx) {
		return s.recentLegacy(ctx, limit, since, sessionID)
	}

	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if !since.IsZero() {
		q = q.Where("timestamp > ?", models.FormatTimestamp(since))
	}
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}

	var rows []logRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent logs: %w", err)
	}

	return envelopesFromRows(rows), nil
}

// Window returns envelopes with from <= timestamp <= to, newest-first. The
// reconciler treats the result as ground truth for the window.
func (s *Store) Window(ctx context.Context, from, to time.Time) ([]*models.Envelope, error) {
	var rows []logRow
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", models.FormatTimestamp(from), models.FormatTimestamp(to)).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query log window: %w", err)
	}

	return envelopesFromRows(rows), nil
}

// Count returns the number of rows in the current schema.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&logRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// envelopesFromRows converts rows, skipping malformed ones. A row that fails
// conversion is logged and dropped rather than failing the whole read.
func envelopesFromRows(rows []logRow) []*models.Envelope {
	out := make([]*models.Envelope, 0, len(rows))
	for i := range rows {
		e, err := envelopeFromRow(&rows[i])
		if err != nil {
			logger.Warn("Skipping malformed log row", "log_id", rows[i].ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Healthcheck pings the underlying database.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite or PostgreSQL unique constraint errors
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
