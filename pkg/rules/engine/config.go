package engine

import "fmt"

// EngineConfig contains configuration for the rule evaluator.
type EngineConfig struct {
	// MaxRules is the maximum number of rules evaluated for one message.
	// Default: 1000.
	MaxRules int

	// EnableTrace records a per-rule trace on each Outcome.
	// Default: false.
	EnableTrace bool

	// LegacyCategoryShortCircuit reproduces the historical CATEGORY branch
	// that resolved a rule when the operator was OR or when other declared
	// kinds were still unmatched. When false, CATEGORY resolves under the
	// same rule as STATIC and GROUP: OR, or nothing left unmatched.
	// Default: false.
	LegacyCategoryShortCircuit bool
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxRules:                   1000,
		EnableTrace:                false,
		LegacyCategoryShortCircuit: false,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxRules <= 0 {
		return fmt.Errorf("%w: max rules must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithMaxRules sets the maximum number of rules per evaluation.
func (c *EngineConfig) WithMaxRules(max int) *EngineConfig {
	c.MaxRules = max
	return c
}

// WithTrace enables or disables evaluation tracing.
func (c *EngineConfig) WithTrace(enabled bool) *EngineConfig {
	c.EnableTrace = enabled
	return c
}

// WithLegacyCategoryShortCircuit toggles the historical CATEGORY branch.
func (c *EngineConfig) WithLegacyCategoryShortCircuit(enabled bool) *EngineConfig {
	c.LegacyCategoryShortCircuit = enabled
	return c
}
