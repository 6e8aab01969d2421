package config

import "time"

// Config is the root configuration structure for mailrules.
type Config struct {
	// Engine contains rule evaluation settings.
	Engine EngineConfig `yaml:"engine"`

	// Store selects where rules, groups and categories are loaded from.
	Store StoreConfig `yaml:"store"`

	// TieBreaker selects how deferred AI rules are resolved.
	TieBreaker TieBreakerConfig `yaml:"tiebreaker"`

	// Audit contains execution record storage and retention settings.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains configuration for the rule evaluator.
type EngineConfig struct {
	// MaxRules caps the number of rules evaluated per message.
	// Zero means unlimited.
	// Default: 0
	MaxRules int `yaml:"max_rules"`

	// Trace records a per-rule trace on every outcome.
	// Default: false
	Trace bool `yaml:"trace"`

	// LegacyCategoryShortCircuit treats an unmatched category condition as
	// passing when the rule also declares AI, even if other deterministic
	// conditions remain under AND.
	// Default: false
	LegacyCategoryShortCircuit bool `yaml:"legacy_category_short_circuit"`
}

// StoreConfig contains rule store configuration.
type StoreConfig struct {
	// Backend selects the store implementation.
	// Options: "memory", "file", "sqlite", "postgres"
	// Default: "file"
	Backend string `yaml:"backend"`

	// Path is the rule document for "file" (and the seed document for
	// "memory"), or the database file for "sqlite".
	// Default: "./rules.yaml"
	Path string `yaml:"path"`

	// Watch reloads the rule document when it changes. Only used by "file".
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// DSN is the PostgreSQL connection string. Only used by "postgres".
	DSN string `yaml:"dsn"`

	// MaxConns is the PostgreSQL pool size.
	// Default: 4
	MaxConns int32 `yaml:"max_conns"`

	// BusyTimeout is the SQLite lock wait.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Cache configures the sender category read cache.
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig contains sender category cache configuration.
type CacheConfig struct {
	// Backend selects the cache implementation.
	// Options: "none", "memory", "redis"
	// Default: "none"
	Backend string `yaml:"backend"`

	// TTL is how long a cached category stays valid.
	// Default: 5m
	TTL time.Duration `yaml:"ttl"`

	// Addr is the Redis address. Only used by "redis".
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password is the Redis password.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db"`

	// Prefix is the Redis key prefix.
	// Default: "mailrules:cat"
	Prefix string `yaml:"prefix"`
}

// TieBreakerConfig contains AI tie-breaker configuration.
type TieBreakerConfig struct {
	// Mode selects the tie-breaker.
	// Options: "none", "static", "llm"
	// Default: "none"
	Mode string `yaml:"mode"`

	// StaticRuleID is the rule chosen by the "static" tie-breaker.
	// Empty picks the first candidate.
	StaticRuleID string `yaml:"static_rule_id"`

	// BaseURL is the OpenAI-compatible API root for "llm".
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// Model is the chat model name for "llm".
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default: "OPENAI_API_KEY"
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds each completion request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries on server errors.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// MaxBodyChars truncates the message body sent to the model.
	// Default: 4000
	MaxBodyChars int `yaml:"max_body_chars"`
}

// AuditConfig contains execution record configuration.
type AuditConfig struct {
	// Enabled controls whether chosen rules are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long records are kept. Zero keeps them forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactEmails masks email addresses in log attributes.
	// Default: true
	RedactEmails *bool `yaml:"redact_emails"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Address is the listen address of the metrics endpoint.
	// Default: "127.0.0.1:9090"
	Address string `yaml:"address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mailrules"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName is the service name in traces.
	// Default: "mailrules"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of evaluations to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address. Empty records spans
	// without exporting them.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`
}

// RedactEmailsEnabled reports whether email redaction is on, treating an
// unset value as the default.
func (c LoggingConfig) RedactEmailsEnabled() bool {
	if c.RedactEmails == nil {
		return DefaultLoggingRedactEmails
	}
	return *c.RedactEmails
}
