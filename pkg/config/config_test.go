package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aquilhq/actionlog/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Minimal config file; everything else comes from defaults
	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  kv:
    path: "` + yamlSafePath(tmpDir) + `/kv"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Stores.KV.Enabled {
		t.Error("Expected KV store enabled by default")
	}
	if !cfg.Stores.Vector.Enabled {
		t.Error("Expected vector store enabled by default")
	}
	if cfg.Stores.Vector.Embedder != "simple" {
		t.Errorf("Expected default embedder 'simple', got %q", cfg.Stores.Vector.Embedder)
	}
	if cfg.Stores.Vector.Dimensions != 256 {
		t.Errorf("Expected default dimensions 256, got %d", cfg.Stores.Vector.Dimensions)
	}
	if !cfg.Compat.GPTMode {
		t.Error("Expected gpt_mode true by default")
	}
	if cfg.Ops.ReqSizeBytes != bytesize.ByteSize(2_000_000) {
		t.Errorf("Expected default req_size_bytes 2000000, got %d", cfg.Ops.ReqSizeBytes)
	}
	if cfg.Ops.StoreWriteTimeout != 10*time.Second {
		t.Errorf("Expected default store_write_timeout 10s, got %v", cfg.Ops.StoreWriteTimeout)
	}
	if cfg.Idempotency.Retention != 24*time.Hour {
		t.Errorf("Expected default idempotency retention 24h, got %v", cfg.Idempotency.Retention)
	}
	if cfg.Reconcile.WindowHours != 24 {
		t.Errorf("Expected default reconcile window 24, got %d", cfg.Reconcile.WindowHours)
	}
	if cfg.Health.MaxErrorRate != 0.5 {
		t.Errorf("Expected default max_error_rate 0.5, got %v", cfg.Health.MaxErrorRate)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config so the
	// server can run from environment variables alone.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.Compat.GPTMode {
		t.Error("Expected gpt_mode true by default")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("ACTIONLOG_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("ACTIONLOG_SERVER_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("ACTIONLOG_LOGGING_LEVEL")
		_ = os.Unsetenv("ACTIONLOG_SERVER_PORT")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

server:
  port: 8080

database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  kv:
    path: "` + yamlSafePath(tmpDir) + `/kv"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment variables override the config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.Server.Port)
	}
}

func TestLoad_BareEnvAliases(t *testing.T) {
	// The release-control flags bind bare names in addition to the
	// ACTIONLOG_ prefixed form.
	_ = os.Setenv("ENABLE_RATE_LIMIT", "true")
	_ = os.Setenv("BREAKER_THRESHOLD", "3")
	_ = os.Setenv("KV_TTL_SECONDS", "3600")
	_ = os.Setenv("GPT_COMPAT_MODE", "false")
	defer func() {
		_ = os.Unsetenv("ENABLE_RATE_LIMIT")
		_ = os.Unsetenv("BREAKER_THRESHOLD")
		_ = os.Unsetenv("KV_TTL_SECONDS")
		_ = os.Unsetenv("GPT_COMPAT_MODE")
	}()

	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Ops.EnableRateLimit {
		t.Error("Expected ENABLE_RATE_LIMIT to enable rate limiting")
	}
	if cfg.Ops.BreakerThreshold != 3 {
		t.Errorf("Expected breaker threshold 3 from env, got %d", cfg.Ops.BreakerThreshold)
	}
	if cfg.Stores.KV.TTLSeconds != 3600 {
		t.Errorf("Expected kv ttl 3600 from env, got %d", cfg.Stores.KV.TTLSeconds)
	}
	if cfg.Compat.GPTMode {
		t.Error("Expected GPT_COMPAT_MODE=false to disable gpt_mode")
	}
}

func TestLoad_DecodeHooks(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  kv:
    path: "` + yamlSafePath(tmpDir) + `/kv"

ops:
  req_size_bytes: "2MB"
  store_write_timeout: "5s"

idempotency:
  retention: "48h"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Ops.ReqSizeBytes != bytesize.ByteSize(2_000_000) {
		t.Errorf("Expected req_size_bytes 2MB = 2000000, got %d", cfg.Ops.ReqSizeBytes)
	}
	if cfg.Ops.StoreWriteTimeout != 5*time.Second {
		t.Errorf("Expected store_write_timeout 5s, got %v", cfg.Ops.StoreWriteTimeout)
	}
	if cfg.Idempotency.Retention != 48*time.Hour {
		t.Errorf("Expected retention 48h, got %v", cfg.Idempotency.Retention)
	}
}

func TestLoad_RetentionFloor(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  kv:
    path: "` + yamlSafePath(tmpDir) + `/kv"

idempotency:
  retention: "1h"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Retention below 24h is raised to the floor
	if cfg.Idempotency.Retention != 24*time.Hour {
		t.Errorf("Expected retention raised to 24h, got %v", cfg.Idempotency.Retention)
	}
}

func TestLoad_RejectsVectorizeBinding(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  vectorize:
    enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for legacy stores.vectorize binding, got nil")
	}
}

func TestLoad_ObjectStoreRequiresBucket(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: sqlite
  path: "` + yamlSafePath(tmpDir) + `/actionlog.db"

stores:
  kv:
    path: "` + yamlSafePath(tmpDir) + `/kv"
  object:
    enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for object store without bucket, got nil")
	}
}

func TestAdminConfig_GetJWTSecret(t *testing.T) {
	cfg := AdminConfig{JWTSecret: "file-secret-at-least-32-characters-long"}

	if got := cfg.GetJWTSecret(); got != "file-secret-at-least-32-characters-long" {
		t.Errorf("Expected file secret, got %q", got)
	}

	// The environment variable takes precedence over the config file
	_ = os.Setenv(EnvAdminSecret, "env-secret-at-least-32-characters-long!")
	defer func() { _ = os.Unsetenv(EnvAdminSecret) }()

	if got := cfg.GetJWTSecret(); got != "env-secret-at-least-32-characters-long!" {
		t.Errorf("Expected env secret to win, got %q", got)
	}
	if !cfg.HasJWTSecret() {
		t.Error("Expected HasJWTSecret true")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 9191
	cfg.Database.SQLite.Path = filepath.Join(tmpDir, "actionlog.db")
	cfg.Stores.KV.Path = filepath.Join(tmpDir, "kv")

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Server.Port != 9191 {
		t.Errorf("Expected port 9191 after round trip, got %d", loaded.Server.Port)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "actionlog" {
		t.Errorf("Expected directory name 'actionlog', got %q", filepath.Base(dir))
	}
}
