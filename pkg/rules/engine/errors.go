package engine

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrNilMessage indicates evaluation was requested without a message.
	ErrNilMessage = errors.New("message cannot be nil")

	// ErrNilStore indicates a rule needed store data but no store was given.
	ErrNilStore = errors.New("store cannot be nil")

	// ErrTooManyRules indicates the rule list exceeds EngineConfig.MaxRules.
	ErrTooManyRules = errors.New("too many rules")

	// ErrCacheUserMismatch indicates a RunCache bound to one user was
	// handed an evaluation for another.
	ErrCacheUserMismatch = errors.New("run cache belongs to a different user")
)

// CategoryLookupError indicates the sender category could not be determined.
// The category state is unknown, which is distinct from "no category".
type CategoryLookupError struct {
	UserID string
	Sender string
	Cause  error
}

// Error returns the error message.
func (e *CategoryLookupError) Error() string {
	return fmt.Sprintf("user %s: category lookup for sender %q failed: %v", e.UserID, e.Sender, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CategoryLookupError) Unwrap() error {
	return e.Cause
}

// GroupLoadError indicates the user's groups could not be loaded.
type GroupLoadError struct {
	UserID string
	Cause  error
}

// Error returns the error message.
func (e *GroupLoadError) Error() string {
	return fmt.Sprintf("user %s: loading groups failed: %v", e.UserID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *GroupLoadError) Unwrap() error {
	return e.Cause
}

// TieBreakerError wraps a failure returned by a TieBreaker. Decide logs it
// and reports no match instead of returning it.
type TieBreakerError struct {
	Candidates int
	Cause      error
}

// Error returns the error message.
func (e *TieBreakerError) Error() string {
	return fmt.Sprintf("tie-breaker failed for %d candidates: %v", e.Candidates, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TieBreakerError) Unwrap() error {
	return e.Cause
}
