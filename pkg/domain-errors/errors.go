// Package domainerrors provides coded domain errors for the referral engine.
//
// Services return these so transports can map outcomes to protocol responses
// and callers can branch on the kind of failure without string matching.
// Infrastructure facts (row missing, conditional write lost) live in
// pkg/platform/sentinel; services translate sentinel errors into coded
// domain errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks expected input problems: unknown code, expired
	// code, exhausted uses. Reported to the caller, never logged as incidents.
	CodeValidation Code = "validation"

	// CodeInvalidInput marks malformed arguments caught at trust boundaries
	// (bad UUIDs, empty required fields).
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks transport-level request problems.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a missing aggregate.
	CodeNotFound Code = "not_found"

	// CodeConflict marks benign idempotency conflicts, e.g. a tracking
	// record that has already converted. Callers treat these as no-ops.
	CodeConflict Code = "conflict"

	// CodeRateLimited marks a caller that exceeded an issuance limit.
	CodeRateLimited Code = "rate_limited"

	// CodeUnauthorized marks a request with a missing, expired or otherwise
	// unusable credential.
	CodeUnauthorized Code = "unauthorized"

	// CodeFraudBlocked marks a conversion rejected by fraud policy. Distinct
	// from validation so callers can message the end user appropriately.
	CodeFraudBlocked Code = "fraud_blocked"

	// CodeInvariantViolation marks an attempted transition a domain
	// invariant forbids (reviving a revoked code, demoting a tier).
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code carried by err, or CodeInternal when err carries
// none. Returns an empty code for nil errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
