// Package errors provides custom error types for the discover pipeline.
// These errors enable programmatic classification of provider and store
// failures, which drives the retry executor's retryable/fatal decisions.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's tree matches target.
var Is = errors.Is

// As finds the first error in err's tree that matches target.
var As = errors.As

// Common sentinel errors for the discover pipeline.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrCredentialsMissing indicates a provider credential is required but unset.
	ErrCredentialsMissing = errors.New("credentials missing")

	// ErrRateLimited indicates that a provider rate limit has been exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable indicates that a provider is temporarily unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrStoreUnavailable indicates the canonical store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRecord indicates a raw record is unusable (missing name or
	// coordinates) and must be excluded without failing the batch.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError represents an error response from a provider API.
type APIError struct {
	Provider   string // Provider ID as string
	StatusCode int
	Endpoint   string
	Message    string
	RetryAfter time.Duration // Provider-supplied retry hint, zero when absent
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Provider, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. A 429 matches ErrRateLimited and a 5xx
// matches ErrProviderUnavailable, which is what the retry executor keys on.
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrProviderUnavailable
	}
	return false
}

// NewAPIError creates a new APIError.
func NewAPIError(provider string, statusCode int, message string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error. Configuration errors are
// always fatal/setup failures: the run aborts before any sweep starts.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StoreError represents an error during a canonical store operation.
type StoreError struct {
	Operation string // "find", "insert", "update", "ping"
	Entity    string // "venue", "event"
	ID        string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s of %s %s failed: %v", e.Operation, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s of %s failed: %v", e.Operation, e.Entity, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStore wraps an error as a StoreError.
func WrapStore(operation, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Operation: operation, Entity: entity, ID: id, Err: err}
}

// IngestError represents a failure of one provider's sweep. It carries the
// provider so callers can report per-pipeline failures without aborting
// sibling pipelines.
type IngestError struct {
	Provider string
	Cell     string // Grid cell label when the failure is cell-scoped
	Err      error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("ingest error for provider %s (cell %s): %v", e.Provider, e.Cell, e.Err)
	}
	return fmt.Sprintf("ingest error for provider %s: %v", e.Provider, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *IngestError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing provider payloads or data files.
type ParseError struct {
	Format  string // "json", "yaml"
	Subject string // endpoint or file the payload came from
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("parse error in %s payload from %s: %s", e.Format, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapParse wraps an error as a ParseError.
func WrapParse(format, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Subject: subject, Message: err.Error(), Err: err}
}

// Helper functions for error checking.

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Retryable reports whether an error is transient and eligible for bounded
// retry with backoff: rate limiting, provider 5xx, timeouts, and transport
// failures. Everything else (non-429 4xx, malformed payloads, validation)
// is fatal for the unit of work and propagates immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// StatusCode 0 means the request never produced a response
		// (DNS failure, connection reset, client timeout).
		return apiErr.StatusCode == 0
	}
	return false
}

// RetryAfter extracts a provider-supplied retry hint from an error, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}
