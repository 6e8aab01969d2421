package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MAILRULES_SECTION_FIELD (e.g., MAILRULES_STORE_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format MAILRULES_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	envInt("MAILRULES_ENGINE_MAX_RULES", &cfg.Engine.MaxRules)
	envBool("MAILRULES_ENGINE_TRACE", &cfg.Engine.Trace)
	envBool("MAILRULES_ENGINE_LEGACY_CATEGORY_SHORT_CIRCUIT", &cfg.Engine.LegacyCategoryShortCircuit)

	// Store overrides
	envString("MAILRULES_STORE_BACKEND", &cfg.Store.Backend)
	envString("MAILRULES_STORE_PATH", &cfg.Store.Path)
	envBool("MAILRULES_STORE_WATCH", &cfg.Store.Watch)
	envString("MAILRULES_STORE_DSN", &cfg.Store.DSN)
	envString("MAILRULES_STORE_CACHE_BACKEND", &cfg.Store.Cache.Backend)
	envDuration("MAILRULES_STORE_CACHE_TTL", &cfg.Store.Cache.TTL)
	envString("MAILRULES_STORE_CACHE_ADDR", &cfg.Store.Cache.Addr)
	envString("MAILRULES_STORE_CACHE_PASSWORD", &cfg.Store.Cache.Password)

	// Tie-breaker overrides
	envString("MAILRULES_TIEBREAKER_MODE", &cfg.TieBreaker.Mode)
	envString("MAILRULES_TIEBREAKER_BASE_URL", &cfg.TieBreaker.BaseURL)
	envString("MAILRULES_TIEBREAKER_MODEL", &cfg.TieBreaker.Model)
	envString("MAILRULES_TIEBREAKER_API_KEY_ENV", &cfg.TieBreaker.APIKeyEnv)
	envDuration("MAILRULES_TIEBREAKER_TIMEOUT", &cfg.TieBreaker.Timeout)

	// Audit overrides
	envBool("MAILRULES_AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("MAILRULES_AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("MAILRULES_AUDIT_PATH", &cfg.Audit.Path)
	envInt("MAILRULES_AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)
	envString("MAILRULES_AUDIT_PRUNE_SCHEDULE", &cfg.Audit.PruneSchedule)

	// Telemetry overrides
	envString("MAILRULES_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("MAILRULES_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv("MAILRULES_TELEMETRY_LOGGING_REDACT_EMAILS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Logging.RedactEmails = &b
		}
	}
	envBool("MAILRULES_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("MAILRULES_TELEMETRY_METRICS_ADDRESS", &cfg.Telemetry.Metrics.Address)
	envBool("MAILRULES_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("MAILRULES_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("MAILRULES_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
