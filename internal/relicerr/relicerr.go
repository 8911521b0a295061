// Package relicerr defines the stable error codes used across the scan
// pipeline and the API surface.
package relicerr

import (
	"errors"
	"fmt"
)

// Code represents stable error codes for all failure modes.
type Code string

const (
	// InvalidLocator indicates a malformed repository URL or an unrecognized host.
	InvalidLocator Code = "INVALID_LOCATOR"
	// ToolFailure indicates an external process failed to spawn or exited non-zero.
	ToolFailure Code = "TOOL_FAILURE"
	// ParseFailure indicates malformed output from an external tool.
	ParseFailure Code = "PARSE_FAILURE"
	// DirectoryFailure indicates a filesystem create/remove error.
	DirectoryFailure Code = "DIRECTORY_FAILURE"
	// AllAttributionsFailed indicates every candidate's history lookup failed.
	AllAttributionsFailed Code = "ALL_ATTRIBUTIONS_FAILED"
	// NoCandidates indicates the resolver was handed an empty candidate set.
	// A scan that finds nothing is not an error; this code only guards the
	// resolver contract.
	NoCandidates Code = "NO_CANDIDATES"
	// JobNotFound indicates an unknown job id was presented to a read operation.
	JobNotFound Code = "JOB_NOT_FOUND"
	// Timeout indicates an external tool invocation exceeded its deadline.
	Timeout Code = "TIMEOUT"
	// Internal indicates an unexpected error.
	Internal Code = "INTERNAL_ERROR"
)

// Error is a coded error carried across the pipeline.
type Error struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a coded error wrapping an optional cause.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the error code from err, or Internal when err carries none.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return Internal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
