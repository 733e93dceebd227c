// Package errors provides domain-specific error types and sentinel errors
// for the query resolution pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotReadOnly indicates a SQL statement failed the read-only check.
	ErrNotReadOnly = errors.New("statement is not read-only")

	// ErrEmptyPhrase indicates the user phrase was empty or whitespace-only.
	ErrEmptyPhrase = errors.New("empty phrase")

	// ErrNoMatch indicates no resolution strategy produced a result.
	ErrNoMatch = errors.New("no matching question or pattern")

	// ErrEntityNotFound indicates fuzzy entity resolution found no candidate
	// above the acceptance threshold.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrCacheExpired indicates cached data has exceeded TTL.
	ErrCacheExpired = errors.New("cache expired")

	// ErrUpstreamDisabled indicates an optional upstream capability
	// (generation, embeddings) is not configured.
	ErrUpstreamDisabled = errors.New("upstream capability disabled")
)

// ValidationError represents a statement that must never execute: it failed
// the read-only gate or template substitution left it malformed.
// Always fatal to the resolution attempt.
type ValidationError struct {
	SQL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError creates a new validation error.
func NewValidationError(sql, reason string) *ValidationError {
	return &ValidationError{SQL: sql, Reason: reason}
}

// ResolutionFailure represents a "no result" outcome from the pipeline.
// It is reported to the caller as a structured response, not a server error.
type ResolutionFailure struct {
	Phrase      string
	Explanation string
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolution failed: %s", e.Explanation)
}

// NewResolutionFailure creates a new resolution failure.
func NewResolutionFailure(phrase, explanation string) *ResolutionFailure {
	return &ResolutionFailure{Phrase: phrase, Explanation: explanation}
}

// UpstreamServiceError represents a failure of the generative or embedding
// capability. Call sites recover with a narrower fallback where one exists.
type UpstreamServiceError struct {
	Service string // "generation" or "embedding"
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream %s error: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// NewUpstreamServiceError creates a new upstream service error.
func NewUpstreamServiceError(service string, err error) *UpstreamServiceError {
	return &UpstreamServiceError{Service: service, Err: err}
}

// DatabaseError represents a database execution failure. The pipeline does
// not distinguish connectivity from syntax failures; it only needs to know
// that execution failed.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error (%s): %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(op string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Err: err}
}
