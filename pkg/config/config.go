package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aquilhq/actionlog/internal/bytesize"
	"github.com/aquilhq/actionlog/pkg/store/rel"
)

// Config represents the actionlog server configuration.
//
// This structure captures all static configuration:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - HTTP server settings
//   - Relational database connection (the durability anchor)
//   - Secondary store bindings (KV, object, vector)
//   - Operational middleware flags (rate limit, size cap, breaker, canary)
//   - Reconciler and health thresholds
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ACTIONLOG_* plus documented bare aliases)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Server contains HTTP API server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the relational store (SQLite or PostgreSQL).
	// This is the durability anchor: a write is only acknowledged once
	// the relational row exists.
	Database rel.Config `mapstructure:"database" yaml:"database"`

	// Stores configures the secondary store bindings (KV, object, vector).
	Stores StoresConfig `mapstructure:"stores" yaml:"stores"`

	// Ops contains the operational middleware flags. These are the
	// release-control surface: every flag also binds a bare environment
	// variable so operators can flip them without editing the file.
	Ops OpsConfig `mapstructure:"ops" yaml:"ops"`

	// Compat controls compatibility behavior for assistant deployments.
	Compat CompatConfig `mapstructure:"compat" yaml:"compat"`

	// Idempotency controls replay-detection record retention.
	Idempotency IdempotencyConfig `mapstructure:"idempotency" yaml:"idempotency"`

	// Reconcile configures the background consistency reconciler.
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`

	// Health configures readiness thresholds.
	Health HealthConfig `mapstructure:"health" yaml:"health"`

	// Admin contains admin endpoint authentication configuration.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Host is the listen address. Empty means all interfaces.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Must exceed the fan-out store timeout or slow store writes
	// would truncate responses.
	// Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// StoresConfig configures the secondary store bindings.
//
// The relational database (Config.Database) is always bound. Each secondary
// store degrades to a "disabled" write outcome when unbound, unless
// compat.gpt_mode is off, in which case startup fails on a missing binding.
type StoresConfig struct {
	// KV configures the embedded key-value mirror (BadgerDB).
	KV KVStoreConfig `mapstructure:"kv" yaml:"kv"`

	// Object configures the S3-compatible object archive.
	Object ObjectStoreConfig `mapstructure:"object" yaml:"object"`

	// Vector configures the semantic search index.
	Vector VectorStoreConfig `mapstructure:"vector" yaml:"vector"`
}

// KVStoreConfig configures the BadgerDB key-value store.
//
// The KV store mirrors every envelope under log:<id> and also backs the
// circuit breaker, rate limiter, idempotency, and counter state.
type KVStoreConfig struct {
	// Enabled controls whether the KV store is bound.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the directory for the BadgerDB files.
	// Default: <data dir>/kv
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory runs BadgerDB without disk persistence. Intended for tests
	// and throwaway environments.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory,omitempty"`

	// TTLSeconds is the time-to-live applied to mirrored log entries.
	// 0 means entries never expire. Env alias: KV_TTL_SECONDS.
	TTLSeconds int `mapstructure:"ttl_seconds" validate:"omitempty,min=0" yaml:"ttl_seconds"`
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	// Enabled controls whether the object store is bound.
	// Default: false (requires a bucket)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Bucket is the S3 bucket name (required when enabled).
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region.
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is a custom S3 endpoint (MinIO, R2, LocalStack).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to all object keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle uses path-style addressing (required for MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// MaxRetries is the per-call retry budget.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
}

// VectorStoreConfig configures the semantic search index.
//
// The binding name is "vector". The legacy "vectorize" binding from older
// deployments is rejected at load time with an error naming this key.
type VectorStoreConfig struct {
	// Enabled controls whether the vector store is bound.
	// Default: true (the simple embedder needs no external service)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Embedder selects the embedding backend.
	// Valid values: simple (deterministic, in-process), http (external service)
	Embedder string `mapstructure:"embedder" validate:"omitempty,oneof=simple http" yaml:"embedder"`

	// Endpoint is the external embedder URL (http embedder only).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Model is the model name passed to the external embedder.
	Model string `mapstructure:"model" yaml:"model,omitempty"`

	// Dimensions is the embedding vector width.
	// Default: 256
	Dimensions int `mapstructure:"dimensions" validate:"omitempty,min=8,max=4096" yaml:"dimensions"`
}

// OpsConfig contains the operational middleware flags.
//
// Every field binds a bare environment variable (listed per field) in
// addition to the prefixed ACTIONLOG_OPS_* form, so the flags can be flipped
// on a running deployment without a config file change.
type OpsConfig struct {
	// DisableNewMW is the kill switch: when set, all middleware below the
	// canary step is skipped and requests are processed raw. Security
	// headers are still attached to responses. Env alias: DISABLE_NEW_MW.
	DisableNewMW bool `mapstructure:"disable_new_mw" yaml:"disable_new_mw"`

	// EnableRateLimit enforces the per-identity token bucket globally.
	// Env alias: ENABLE_RATE_LIMIT.
	EnableRateLimit bool `mapstructure:"enable_rate_limit" yaml:"enable_rate_limit"`

	// RateLimitRPS is the bucket refill rate in requests per second.
	// Env alias: RATE_LIMIT_RPS. Default: 10
	RateLimitRPS int `mapstructure:"rate_limit_rps" validate:"omitempty,min=1" yaml:"rate_limit_rps"`

	// RateLimitBurst is the bucket capacity.
	// Env alias: RATE_LIMIT_BURST. Default: 20
	RateLimitBurst int `mapstructure:"rate_limit_burst" validate:"omitempty,min=1" yaml:"rate_limit_burst"`

	// EnableReqSizeCap enforces the request body size cap globally.
	// Env alias: ENABLE_REQ_SIZE_CAP.
	EnableReqSizeCap bool `mapstructure:"enable_req_size_cap" yaml:"enable_req_size_cap"`

	// ReqSizeBytes is the maximum accepted Content-Length. Requests exactly
	// at the cap pass; strictly larger requests are rejected when
	// enforcement is on. Env alias: REQ_SIZE_BYTES. Default: 2000000
	ReqSizeBytes bytesize.ByteSize `mapstructure:"req_size_bytes" yaml:"req_size_bytes"`

	// EnableStoreBreaker enables the per-store circuit breaker.
	// Env alias: ENABLE_STORE_BREAKER.
	EnableStoreBreaker bool `mapstructure:"enable_store_breaker" yaml:"enable_store_breaker"`

	// BreakerThreshold is the failure count within the rolling window that
	// opens a store's breaker. Env alias: BREAKER_THRESHOLD. Default: 5
	BreakerThreshold int `mapstructure:"breaker_threshold" validate:"omitempty,min=1" yaml:"breaker_threshold"`

	// EnableCanary routes a deterministic percentage of identities through
	// the enforcement path even when the global flags are off.
	// Env alias: ENABLE_CANARY.
	EnableCanary bool `mapstructure:"enable_canary" yaml:"enable_canary"`

	// CanaryPercent is the canary cohort size in percent (0-100).
	// Env alias: CANARY_PERCENT. Default: 5
	CanaryPercent int `mapstructure:"canary_percent" validate:"omitempty,min=0,max=100" yaml:"canary_percent"`

	// EnableSecurityHeaders attaches the standard security headers to every
	// response. Env alias: ENABLE_SECURITY_HEADERS. Default: true
	EnableSecurityHeaders bool `mapstructure:"enable_security_headers" yaml:"enable_security_headers"`

	// EnableHSTS adds Strict-Transport-Security. Off unless explicitly
	// enabled: HSTS behind a TLS-terminating proxy is an operator decision.
	// Env alias: ENABLE_HSTS.
	EnableHSTS bool `mapstructure:"enable_hsts" yaml:"enable_hsts"`

	// CORSAllowOrigins is the CORS allow-list. An empty list passes
	// requests through without CORS headers.
	// Env alias: CORS_ALLOW_ORIGINS (comma-separated).
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins" yaml:"cors_allow_origins,omitempty"`

	// StoreWriteTimeout bounds each individual store write during fan-out.
	// Default: 10s
	StoreWriteTimeout time.Duration `mapstructure:"store_write_timeout" yaml:"store_write_timeout"`
}

// CompatConfig controls compatibility behavior.
type CompatConfig struct {
	// GPTMode keeps the write path permissive: unbound stores produce
	// "disabled" outcomes instead of failing startup. When off, startup
	// requires every enabled binding to open cleanly.
	// Env alias: GPT_COMPAT_MODE. Default: true
	GPTMode bool `mapstructure:"gpt_mode" yaml:"gpt_mode"`
}

// IdempotencyConfig controls replay-detection retention.
type IdempotencyConfig struct {
	// Retention is how long idempotency records are kept. Values below 24h
	// are raised to 24h.
	// Default: 24h
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// ReconcileConfig configures the background consistency reconciler.
type ReconcileConfig struct {
	// Interval is the scheduler period. 0 disables scheduled runs
	// (manual triggering via the admin API still works).
	// Default: 1h
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// WindowHours is the lookback window for scheduled runs.
	// Default: 24
	WindowHours int `mapstructure:"window_hours" validate:"omitempty,min=1" yaml:"window_hours"`
}

// HealthConfig configures readiness thresholds.
type HealthConfig struct {
	// MaxErrorRate is the write error-rate ceiling over the last rolling
	// window above which readiness reports unavailable.
	// Default: 0.5
	MaxErrorRate float64 `mapstructure:"max_error_rate" validate:"omitempty,gte=0,lte=1" yaml:"max_error_rate"`
}

// EnvAdminSecret is the name of the environment variable for the admin
// endpoints' JWT signing secret.
const EnvAdminSecret = "ACTIONLOG_ADMIN_SECRET"

// AdminConfig contains admin endpoint authentication configuration.
type AdminConfig struct {
	// JWTSecret is the HMAC signing key for admin bearer tokens. When
	// empty, admin endpoints are open (development mode) and a warning is
	// logged at startup. Can also be set via ACTIONLOG_ADMIN_SECRET, which
	// takes precedence over the config file.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// GetJWTSecret returns the admin JWT secret, preferring the environment
// variable. Returns empty string if neither is set.
func (c *AdminConfig) GetJWTSecret() string {
	if envSecret := os.Getenv(EnvAdminSecret); envSecret != "" {
		return envSecret
	}
	return c.JWTSecret
}

// HasJWTSecret returns whether an admin JWT secret is configured.
func (c *AdminConfig) HasJWTSecret() bool {
	return c.GetJWTSecret() != ""
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ACTIONLOG_* and bare aliases)
//  2. Configuration file
//  3. Default values
//
// A missing config file is not an error: environment variables and defaults
// alone produce a runnable configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// The old deployments bound the vector store under "vectorize". Reject
	// it loudly rather than silently running without semantic search.
	if v.IsSet("stores.vectorize") {
		return nil, fmt.Errorf("unknown store binding %q: the vector store is configured under %q", "stores.vectorize", "stores.vector")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if an explicitly requested config file exists and provides
// user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  actionlog config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the file may contain store credentials or the
	// admin JWT secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables, defaults, and
// config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the ACTIONLOG_ prefix and underscores.
	// Example: ACTIONLOG_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("ACTIONLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvAliases(v)
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default locations: $XDG_CONFIG_HOME/actionlog, then /etc/actionlog
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath("/etc/actionlog")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvAliases binds the release-control flags to their documented bare
// environment variable names in addition to the prefixed form. BindEnv with
// explicit names bypasses the prefix, so both spellings are listed.
func bindEnvAliases(v *viper.Viper) {
	aliases := map[string]string{
		"ops.enable_rate_limit":       "ENABLE_RATE_LIMIT",
		"ops.rate_limit_rps":          "RATE_LIMIT_RPS",
		"ops.rate_limit_burst":        "RATE_LIMIT_BURST",
		"ops.enable_req_size_cap":     "ENABLE_REQ_SIZE_CAP",
		"ops.req_size_bytes":          "REQ_SIZE_BYTES",
		"ops.enable_store_breaker":    "ENABLE_STORE_BREAKER",
		"ops.breaker_threshold":       "BREAKER_THRESHOLD",
		"ops.enable_canary":           "ENABLE_CANARY",
		"ops.canary_percent":          "CANARY_PERCENT",
		"ops.disable_new_mw":          "DISABLE_NEW_MW",
		"ops.enable_security_headers": "ENABLE_SECURITY_HEADERS",
		"ops.enable_hsts":             "ENABLE_HSTS",
		"ops.cors_allow_origins":      "CORS_ALLOW_ORIGINS",
		"stores.kv.ttl_seconds":       "KV_TTL_SECONDS",
		"compat.gpt_mode":             "GPT_COMPAT_MODE",
	}

	for key, bare := range aliases {
		prefixed := "ACTIONLOG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// BindEnv only errors on an empty key
		_ = v.BindEnv(key, prefixed, bare)
	}
}

// setViperDefaults registers the default value for every key so that
// environment-only configuration (no file) still unmarshals completely.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.endpoint", "http://localhost:4040")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.type", "sqlite")

	v.SetDefault("stores.kv.enabled", true)
	v.SetDefault("stores.kv.ttl_seconds", 0)
	v.SetDefault("stores.object.enabled", false)
	v.SetDefault("stores.vector.enabled", true)
	v.SetDefault("stores.vector.embedder", "simple")
	v.SetDefault("stores.vector.dimensions", 256)

	v.SetDefault("ops.disable_new_mw", false)
	v.SetDefault("ops.enable_rate_limit", false)
	v.SetDefault("ops.rate_limit_rps", 10)
	v.SetDefault("ops.rate_limit_burst", 20)
	v.SetDefault("ops.enable_req_size_cap", false)
	v.SetDefault("ops.req_size_bytes", 2000000)
	v.SetDefault("ops.enable_store_breaker", false)
	v.SetDefault("ops.breaker_threshold", 5)
	v.SetDefault("ops.enable_canary", false)
	v.SetDefault("ops.canary_percent", 5)
	v.SetDefault("ops.enable_security_headers", true)
	v.SetDefault("ops.enable_hsts", false)
	v.SetDefault("ops.store_write_timeout", "10s")

	v.SetDefault("compat.gpt_mode", true)

	v.SetDefault("idempotency.retention", "24h")

	v.SetDefault("reconcile.interval", "1h")
	v.SetDefault("reconcile.window_hours", 24)

	v.SetDefault("health.max_error_rate", 0.5)
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize, time.Duration, and CSV list parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use
// human-readable sizes like "2MB", "500Mi", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "actionlog")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "actionlog")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// config init command).
func GetConfigDir() string {
	return getConfigDir()
}
