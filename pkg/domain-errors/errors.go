// Package domainerrors provides coded errors for domain logic.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded domain errors that transports
// can map onto their own status vocabulary without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value doubles as the wire-level
// error code in HTTP envelopes, so treat values as a public contract.
type Code string

const (
	// CodeUnauthorized means the caller lacks the role required for the
	// operation (not the administrator, not the current owner).
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound means the referenced entity has no record.
	CodeNotFound Code = "not_found"
	// CodeConflict means the entity is in a state that permanently or
	// temporarily forbids the operation (e.g. already transferred).
	CodeConflict Code = "conflict"
	// CodeBadRequest means the request could not be understood at all
	// (malformed body, missing field).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput means a field value violates a domain constraint
	// (length bounds, empty text, batch size).
	CodeInvalidInput Code = "invalid_input"
	// CodeInvariantViolation means a domain invariant would be broken;
	// used by model-level Can* checks before services re-code them.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal means an infrastructure failure the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a stable code and human-readable message.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the error's classification code.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable message without code or cause.
func (e *Error) Message() string { return e.message }

// New creates a coded domain error.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a domain code. The cause remains
// reachable via errors.Is/As for infrastructure-level inspection.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so transports never leak raw failure detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// MessageOf extracts the message from err; empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.message
	}
	return ""
}
