// Package errors provides structured error types for the planviz application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the failure taxonomy of the enrichment engine:
//   - CONFIG_*: Rule table or option validation failures, fatal at startup
//   - DATA_*: Untrusted plan data problems, recovered locally and logged
//   - INVARIANT_*: Graph invariant violations, fatal mid-pipeline
//   - NETWORK_*: Failures talking to external collaborators
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownHandler, "handler %q is not registered", name)
//	if errors.Is(err, errors.ErrCodeUnknownHandler) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "narrative request to %s", host)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors (fatal at startup, before any graph processing)
	ErrCodeInvalidConfig  Code = "CONFIG_INVALID"
	ErrCodeInvalidRule    Code = "CONFIG_INVALID_RULE"
	ErrCodeUnknownHandler Code = "CONFIG_UNKNOWN_HANDLER"
	ErrCodeInvalidFormat  Code = "CONFIG_INVALID_FORMAT"
	ErrCodeInvalidSource  Code = "CONFIG_INVALID_SOURCE"

	// Data errors (recovered locally, never propagated as failures)
	ErrCodeDanglingEdge    Code = "DATA_DANGLING_EDGE"
	ErrCodeInvalidPlan     Code = "DATA_INVALID_PLAN"
	ErrCodeInvalidOverlay  Code = "DATA_INVALID_OVERLAY"
	ErrCodeInvalidDocument Code = "DATA_INVALID_DOCUMENT"

	// Invariant violations (fatal, the engine stops rather than corrupt the graph)
	ErrCodeIdentifierCollision Code = "INVARIANT_IDENTIFIER_COLLISION"
	ErrCodeGraphCorrupt        Code = "INVARIANT_GRAPH_CORRUPT"

	// External collaborator errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "NETWORK_TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err belongs to a fatal category (configuration or
// invariant violations). Data and network errors are recoverable: the engine
// drops the offending input or carries on without the collaborator.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidConfig, ErrCodeInvalidRule, ErrCodeUnknownHandler,
		ErrCodeInvalidFormat, ErrCodeInvalidSource,
		ErrCodeIdentifierCollision, ErrCodeGraphCorrupt:
		return true
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
