package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreBackend          = "file"
	DefaultStorePath             = "./rules.yaml"
	DefaultStoreDebounceInterval = 100 * time.Millisecond
	DefaultStoreMaxConns         = int32(4)
	DefaultStoreBusyTimeout      = 5 * time.Second

	// Category cache defaults
	DefaultCacheBackend = "none"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheAddr    = "localhost:6379"
	DefaultCachePrefix  = "mailrules:cat"

	// Tie-breaker defaults
	DefaultTieBreakerMode         = "none"
	DefaultTieBreakerAPIKeyEnv    = "OPENAI_API_KEY"
	DefaultTieBreakerTimeout      = 30 * time.Second
	DefaultTieBreakerMaxRetries   = 2
	DefaultTieBreakerMaxBodyChars = 4000

	// Audit defaults
	DefaultAuditBackend       = "sqlite"
	DefaultAuditPath          = "data/audit.db"
	DefaultAuditRetentionDays = 90
	DefaultAuditPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactEmails = true
	DefaultMetricsAddress      = "127.0.0.1:9090"
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "mailrules"
	DefaultTracingServiceName  = "mailrules"
	DefaultTracingSampleRatio  = 1.0
)

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Fields that
// already have a value are left alone.
func ApplyDefaults(cfg *Config) {
	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" && cfg.Store.Backend != "postgres" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.DebounceInterval == 0 {
		cfg.Store.DebounceInterval = DefaultStoreDebounceInterval
	}
	if cfg.Store.MaxConns == 0 {
		cfg.Store.MaxConns = DefaultStoreMaxConns
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyTimeout
	}

	// Cache defaults
	if cfg.Store.Cache.Backend == "" {
		cfg.Store.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Store.Cache.TTL == 0 {
		cfg.Store.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Store.Cache.Addr == "" {
		cfg.Store.Cache.Addr = DefaultCacheAddr
	}
	if cfg.Store.Cache.Prefix == "" {
		cfg.Store.Cache.Prefix = DefaultCachePrefix
	}

	// Tie-breaker defaults
	if cfg.TieBreaker.Mode == "" {
		cfg.TieBreaker.Mode = DefaultTieBreakerMode
	}
	if cfg.TieBreaker.APIKeyEnv == "" {
		cfg.TieBreaker.APIKeyEnv = DefaultTieBreakerAPIKeyEnv
	}
	if cfg.TieBreaker.Timeout == 0 {
		cfg.TieBreaker.Timeout = DefaultTieBreakerTimeout
	}
	if cfg.TieBreaker.MaxRetries == 0 {
		cfg.TieBreaker.MaxRetries = DefaultTieBreakerMaxRetries
	}
	if cfg.TieBreaker.MaxBodyChars == 0 {
		cfg.TieBreaker.MaxBodyChars = DefaultTieBreakerMaxBodyChars
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Address == "" {
		cfg.Telemetry.Metrics.Address = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}
