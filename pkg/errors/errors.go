// Package errors provides structured error types for cratewright.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the resolver and emitter
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes correspond to the failure modes of the Manifest & Lock adapter,
// the graph builder, the feature resolver, and the emitter.
//
// # Usage
//
//	err := errors.New(errors.ManifestNotFound, "no Cargo.toml in %s", dir)
//	if errors.Is(err, errors.ManifestNotFound) {
//	    // Handle missing manifest
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.LockfileOutOfSync, origErr, "no lock entry for %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error kinds, all fatal at the component boundary (spec §7).
const (
	ManifestNotFound            Code = "MANIFEST_NOT_FOUND"
	LockfileOutOfSync           Code = "LOCKFILE_OUT_OF_SYNC"
	UnknownSource               Code = "UNKNOWN_SOURCE"
	CyclicGraph                 Code = "CYCLIC_GRAPH"
	UnknownFeature              Code = "UNKNOWN_FEATURE"
	ActivatedMissingOptionalDep Code = "ACTIVATED_MISSING_OPTIONAL_DEP"
	DuplicateDerivationKey      Code = "DUPLICATE_DERIVATION_KEY"
	EmitterIO                   Code = "EMITTER_IO"

	// Input validation errors, not named in spec.md §7 but required at the
	// CLI/adapter boundary the same way the teacher's pkg/errors carries
	// ErrCodeInvalidInput for its own collaborators.
	InvalidInput Code = "INVALID_INPUT"
	Internal     Code = "INTERNAL_ERROR"
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
