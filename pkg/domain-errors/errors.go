// Package domainerrors provides the structured error type shared by all
// services. Services attach a Code so transports and callers can branch on the
// kind of failure without string matching.
//
// For infrastructure facts (not found, expired, conflict at the store layer)
// use pkg/platform/sentinel; services translate those into domain errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// CodeBadRequest marks a request that is syntactically fine but cannot be
	// served as asked (missing fields, zero IDs).
	CodeBadRequest Code = "bad_request"

	// CodeInvalidInput marks malformed or out-of-range input rejected at a
	// trust boundary.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvariantViolation marks an aggregate-level rule violation raised by
	// model constructors and transition guards.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeComplianceDenied marks a well-formed request rejected by the
	// compliance rule engine. This is a business outcome, not a bug; the
	// message carries the regulator-facing reason.
	CodeComplianceDenied Code = "compliance_denied"

	// CodeStateConflict marks a transition that is invalid for the entity's
	// current status, or a commit-time version mismatch. Recoverable by
	// re-reading state.
	CodeStateConflict Code = "state_conflict"

	// CodePoolUnderCapacity marks a failed quorum assembly. Surfaced to an
	// operator; never silently retried or substituted.
	CodePoolUnderCapacity Code = "pool_under_capacity"

	// CodeNoFurtherAppeal marks an appeal attempted past the final escalation
	// tier. Terminal business outcome.
	CodeNoFurtherAppeal Code = "no_further_appeal"

	// CodeDeadlineExceeded marks an action attempted after its governing
	// deadline (e.g. an appeal past the appeal window).
	CodeDeadlineExceeded Code = "deadline_exceeded"

	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// Error is the structured domain error. It wraps an optional cause.
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

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is treat two domain errors with the same code and message as
// equal, so tests can assert against a freshly constructed error.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code && e.Message == de.Message
	}
	return false
}

// New creates a domain error with a code and a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or any error it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// GetCode returns the code of a domain error, or CodeInternal when err is not
// a domain error.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Message returns the message of a domain error, or the plain Error() text
// when err is not a domain error.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ToHTTPStatus maps a code to the HTTP status used by the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeComplianceDenied, CodeNoFurtherAppeal, CodeDeadlineExceeded:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStateConflict, CodeConflict:
		return http.StatusConflict
	case CodePoolUnderCapacity, CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
