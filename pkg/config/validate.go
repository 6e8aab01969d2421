package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateTieBreaker(&cfg.TieBreaker)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxRules < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.max_rules",
			Message: "max rules must be non-negative",
		})
	}
	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "file", "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.path",
				Message: fmt.Sprintf("path is required for the %s backend", cfg.Backend),
			})
		}
	case "postgres":
		if cfg.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "store.dsn",
				Message: "dsn is required for the postgres backend",
			})
		}
		if cfg.MaxConns < 0 {
			errs = append(errs, FieldError{
				Field:   "store.max_conns",
				Message: "max conns must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid store backend %q: must be 'memory', 'file', 'sqlite', or 'postgres'", cfg.Backend),
		})
	}

	if cfg.Watch && cfg.Backend != "file" {
		errs = append(errs, FieldError{
			Field:   "store.watch",
			Message: "watch is only supported by the file backend",
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "store.debounce_interval",
			Message: "debounce interval must be non-negative",
		})
	}

	switch cfg.Cache.Backend {
	case "none":
	case "memory", "redis":
		if cfg.Cache.TTL <= 0 {
			errs = append(errs, FieldError{
				Field:   "store.cache.ttl",
				Message: "ttl must be positive when a cache is enabled",
			})
		}
		if cfg.Cache.Backend == "redis" && cfg.Cache.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "store.cache.addr",
				Message: "addr is required for the redis cache",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.cache.backend",
			Message: fmt.Sprintf("invalid cache backend %q: must be 'none', 'memory', or 'redis'", cfg.Cache.Backend),
		})
	}

	return errs
}

func validateTieBreaker(cfg *TieBreakerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "none", "static":
	case "llm":
		if cfg.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   "tiebreaker.base_url",
				Message: "base url is required for the llm tie-breaker",
			})
		} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "tiebreaker.base_url",
				Message: fmt.Sprintf("invalid base url %q", cfg.BaseURL),
			})
		}
		if cfg.Model == "" {
			errs = append(errs, FieldError{
				Field:   "tiebreaker.model",
				Message: "model is required for the llm tie-breaker",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "tiebreaker.mode",
			Message: fmt.Sprintf("invalid tie-breaker mode %q: must be 'none', 'static', or 'llm'", cfg.Mode),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "tiebreaker.timeout",
			Message: "timeout must be non-negative",
		})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "tiebreaker.max_retries",
			Message: "max retries must be non-negative",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid audit backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		if cfg.Metrics.Address == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.address",
				Message: "metrics address is required when metrics are enabled",
			})
		}
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
