package config

import (
	"strings"
	"time"

	"github.com/aquilhq/actionlog/internal/bytesize"
	"github.com/aquilhq/actionlog/pkg/store/rel"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults. It also
// normalizes values (log level casing).
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//
// Boolean flags whose default is true (security headers, gpt_mode, kv/vector
// enabled) are defaulted at the viper layer, not here: a struct zero value
// cannot be told apart from an explicit false.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	cfg.Database.ApplyDefaults()
	applyStoresDefaults(&cfg.Stores)
	applyOpsDefaults(&cfg.Ops)
	applyIdempotencyDefaults(&cfg.Idempotency)
	applyReconcileDefaults(&cfg.Reconcile)
	applyHealthDefaults(&cfg.Health)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyStoresDefaults sets secondary store defaults.
func applyStoresDefaults(cfg *StoresConfig) {
	// KV path defaults next to the relational database
	if cfg.KV.Path == "" && !cfg.KV.InMemory {
		cfg.KV.Path = rel.DefaultDataDir("kv")
	}

	if cfg.Vector.Embedder == "" {
		cfg.Vector.Embedder = "simple"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 256
	}
}

// applyOpsDefaults sets operational middleware defaults. The enable flags
// default to off (dark launch posture); only the numeric knobs are filled.
func applyOpsDefaults(cfg *OpsConfig) {
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.ReqSizeBytes == 0 {
		cfg.ReqSizeBytes = bytesize.ByteSize(2_000_000)
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.CanaryPercent == 0 {
		cfg.CanaryPercent = 5
	}
	if cfg.StoreWriteTimeout == 0 {
		cfg.StoreWriteTimeout = 10 * time.Second
	}
}

// applyIdempotencyDefaults sets idempotency retention defaults.
// Retention below 24 hours is raised: replay protection over less than a day
// defeats its purpose for assistant retries.
func applyIdempotencyDefaults(cfg *IdempotencyConfig) {
	if cfg.Retention < 24*time.Hour {
		cfg.Retention = 24 * time.Hour
	}
}

// applyReconcileDefaults sets reconciler defaults. Interval 0 is a valid
// explicit value (scheduler disabled), so only the window is filled.
func applyReconcileDefaults(cfg *ReconcileConfig) {
	if cfg.WindowHours == 0 {
		cfg.WindowHours = 24
	}
}

// applyHealthDefaults sets readiness threshold defaults.
func applyHealthDefaults(cfg *HealthConfig) {
	if cfg.MaxErrorRate == 0 {
		cfg.MaxErrorRate = 0.5
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files (config init)
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Database: rel.Config{
			Type: rel.DatabaseTypeSQLite,
		},
		Stores: StoresConfig{
			KV: KVStoreConfig{
				Enabled: true,
			},
			Vector: VectorStoreConfig{
				Enabled:  true,
				Embedder: "simple",
			},
		},
		Ops: OpsConfig{
			EnableSecurityHeaders: true,
		},
		Compat: CompatConfig{
			GPTMode: true,
		},
		Reconcile: ReconcileConfig{
			Interval: time.Hour,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
