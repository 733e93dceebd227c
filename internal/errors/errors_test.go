package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("DROP TABLE x", "not read-only")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to match *ValidationError")
	}
	if ve.SQL != "DROP TABLE x" {
		t.Errorf("unexpected SQL: %q", ve.SQL)
	}
}

func TestUpstreamServiceErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewUpstreamServiceError("embedding", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
	if got := err.Error(); got != "upstream embedding error: connection refused" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestDatabaseErrorWrapping(t *testing.T) {
	inner := errors.New("driver: bad connection")
	err := fmt.Errorf("execute: %w", NewDatabaseError("query", inner))

	var de *DatabaseError
	if !errors.As(err, &de) {
		t.Fatal("expected errors.As to match *DatabaseError through wrapping")
	}
	if de.Op != "query" {
		t.Errorf("unexpected op: %q", de.Op)
	}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the driver error")
	}
}

func TestSentinels(t *testing.T) {
	wrapped := fmt.Errorf("catalog: %w", ErrNoMatch)
	if !errors.Is(wrapped, ErrNoMatch) {
		t.Error("expected sentinel match through wrapping")
	}
}
