package tiebreaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoChoices is returned when a completion response carries no choices.
var ErrNoChoices = errors.New("no choices in response")

// CompletionError is a non-2xx answer from the completion endpoint.
type CompletionError struct {
	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the response body or error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the request may succeed when repeated.
func (e *CompletionError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// TimeoutError is a request that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion request timeout after %s", e.Timeout)
}

// ParseError is a model answer that could not be interpreted.
type ParseError struct {
	// Raw is the content that failed to parse
	Raw string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("tie-breaker answer parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
