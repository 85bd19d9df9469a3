package errors

import (
	"errors"
	"fmt"
)

// IngestError is the structured error type for mathdex.
// It provides rich context for error handling and logging.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_503_DOCID_DESYNC").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with IngestError.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new IngestError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new IngestError with a formatted message.
func Newf(code string, format string, args ...any) *IngestError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an IngestError from an existing error.
// The error's message becomes the IngestError message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// CodeOf extracts the error code from err, or "" if err carries none.
func CodeOf(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsFatal reports whether err is (or wraps) a fatal-severity IngestError.
// Fatal errors mean persisted state can no longer be trusted and the
// process must stop after flushing what it can.
func IsFatal(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err is (or wraps) an IngestError with code.
func HasCode(err error, code string) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}
