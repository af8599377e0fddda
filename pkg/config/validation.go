package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// structValidator is shared: validator.Validate caches struct metadata, so a
// single instance is cheaper than one per call.
var structValidator = validator.New()

// Validate checks the configuration for errors.
//
// Struct tags cover ranges and enumerations; the hand checks below cover
// cross-field rules that tags cannot express. Call ApplyDefaults first:
// validation does not fill in missing values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}

	if cfg.Stores.KV.Enabled && !cfg.Stores.KV.InMemory && cfg.Stores.KV.Path == "" {
		return fmt.Errorf("kv store is enabled but no path is configured")
	}

	if cfg.Stores.Object.Enabled && cfg.Stores.Object.Bucket == "" {
		return fmt.Errorf("object store is enabled but no bucket is configured")
	}

	if cfg.Stores.Vector.Enabled && cfg.Stores.Vector.Embedder == "http" && cfg.Stores.Vector.Endpoint == "" {
		return fmt.Errorf("vector store uses the http embedder but no endpoint is configured")
	}

	// Strict mode: the write path must be able to mirror into KV (breaker,
	// rate limiter, idempotency, and counters all live there).
	if !cfg.Compat.GPTMode && !cfg.Stores.KV.Enabled {
		return fmt.Errorf("kv store cannot be disabled when compat.gpt_mode is off")
	}

	if secret := cfg.Admin.GetJWTSecret(); secret != "" && len(secret) < 32 {
		return fmt.Errorf("admin jwt_secret must be at least 32 characters, got %d", len(secret))
	}

	return nil
}
