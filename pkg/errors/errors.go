// Package errors provides structured error types for the shapeserial engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, CLI, and HTTP service
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into a few families:
//   - INVALID_*: Input validation failures (bad tag, unknown format name)
//   - SCHEMA: Property schema construction failures, raised at definition time
//   - DISALLOWED_CLASS / UNKNOWN_TYPE: Type gate failures during deserialization
//   - CODEC / CYCLE / DEPTH_EXCEEDED: Encoding and decoding failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeSchema, "property %q declared and excluded", name)
//	if errors.Is(err, errors.ErrCodeSchema) {
//	    // Handle schema error
//	}
//
//	// Wrap parser errors without changing their message
//	err := errors.Wrap(errors.ErrCodeCodec, parseErr, "decode %s", format)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidTag    Code = "INVALID_TAG"
	ErrCodeInvalidKey    Code = "INVALID_KEY"

	// Schema errors
	ErrCodeSchema Code = "SCHEMA"

	// Type gate errors
	ErrCodeDisallowedClass Code = "DISALLOWED_CLASS"
	ErrCodeUnknownType     Code = "UNKNOWN_TYPE"

	// Encoding / decoding errors
	ErrCodeMalformedReference Code = "MALFORMED_REFERENCE"
	ErrCodeCodec              Code = "CODEC"
	ErrCodeCycle              Code = "CYCLE"
	ErrCodeDepthExceeded      Code = "DEPTH_EXCEEDED"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"

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
// Nested coded errors are searched too, so a SCHEMA error wrapped in a CODEC
// error still reports true for both codes.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
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

// DisallowedClassError is the cause attached to DISALLOWED_CLASS errors.
// It names the type tag the safe-mode gate refused to instantiate.
type DisallowedClassError struct {
	Tag string
}

// Error implements the error interface.
func (e *DisallowedClassError) Error() string {
	return fmt.Sprintf("disallowed class: %s", e.Tag)
}

// Code returns the error code for this error type.
func (e *DisallowedClassError) Code() Code {
	return ErrCodeDisallowedClass
}

// Disallowed builds the coded error raised when the safe-mode gate rejects tag.
func Disallowed(tag string) *Error {
	return Wrap(ErrCodeDisallowedClass, &DisallowedClassError{Tag: tag}, "type %q is not in the allow-list", tag)
}

// As is a re-export of the standard library errors.As so callers that import
// this package under the name errors keep access to it.
func As(err error, target any) bool {
	return errors.As(err, target)
}
