package rel

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults_SQLitePath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := &Config{Type: DatabaseTypeSQLite}
	cfg.ApplyDefaults()

	expected := filepath.Join(tmpDir, "actionlog", "actionlog.db")
	if cfg.SQLite.Path != expected {
		t.Errorf("expected default path %q, got %q", expected, cfg.SQLite.Path)
	}
}

func TestApplyDefaults_Postgres(t *testing.T) {
	cfg := &Config{Type: DatabaseTypePostgres}
	cfg.ApplyDefaults()

	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Postgres.Port)
	}
	if cfg.Postgres.SSLMode != "disable" {
		t.Errorf("expected default ssl_mode 'disable', got %q", cfg.Postgres.SSLMode)
	}
	if cfg.Postgres.MaxOpenConns != 25 {
		t.Errorf("expected default max_open_conns 25, got %d", cfg.Postgres.MaxOpenConns)
	}
}

func TestApplyDefaults_AutoMigrate(t *testing.T) {
	cfg := &Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: ":memory:"}}
	cfg.ApplyDefaults()

	if !cfg.ShouldMigrate() {
		t.Error("expected auto_migrate to default to true")
	}

	f := false
	cfg.AutoMigrate = &f
	if cfg.ShouldMigrate() {
		t.Error("expected ShouldMigrate to honor explicit false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "sqlite without path",
			cfg:     Config{Type: DatabaseTypeSQLite},
			wantErr: "sqlite path",
		},
		{
			name:    "postgres without host",
			cfg:     Config{Type: DatabaseTypePostgres, Postgres: PostgresConfig{Database: "logs", User: "app"}},
			wantErr: "postgres host",
		},
		{
			name:    "postgres without database",
			cfg:     Config{Type: DatabaseTypePostgres, Postgres: PostgresConfig{Host: "localhost", User: "app"}},
			wantErr: "postgres database",
		},
		{
			name:    "unknown type",
			cfg:     Config{Type: "oracle"},
			wantErr: "unsupported database type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "actionlog",
		User:     "app",
		Password: "secret",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, part := range []string{"host=db.internal", "port=5433", "dbname=actionlog", "user=app", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("expected DSN to contain %q, got %q", part, dsn)
		}
	}
}
