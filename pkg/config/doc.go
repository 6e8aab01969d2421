// Package config provides configuration management for mailrules.
//
// Configuration is loaded from YAML, filled with defaults, optionally
// overridden from the environment, and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("mailrules.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MAILRULES_SECTION_FIELD:
//
//   - MAILRULES_STORE_BACKEND overrides store.backend
//   - MAILRULES_TIEBREAKER_MODEL overrides tiebreaker.model
//   - MAILRULES_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	engine:
//	  max_rules: 500
//	store:
//	  backend: file
//	  path: ./rules.yaml
//	  watch: true
//	  cache:
//	    backend: redis
//	    addr: localhost:6379
//	    ttl: 10m
//	tiebreaker:
//	  mode: llm
//	  base_url: https://api.openai.com/v1
//	  model: gpt-4o-mini
//	audit:
//	  enabled: true
//	  path: data/audit.db
//	  retention_days: 30
//	telemetry:
//	  logging:
//	    level: debug
//	    format: text
package config
