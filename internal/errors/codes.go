// Package errors provides structured error handling for mathdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (stores, disk)
//   - 4XX: Validation errors (corpus records)
//   - 5XX: Internal errors (pipeline invariants)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates store and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates corpus record validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates pipeline invariant violations.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the record failed but ingestion can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreWrite   = "ERR_202_STORE_WRITE"
	ErrCodeStoreFlush   = "ERR_203_STORE_FLUSH"
	ErrCodeCorruptIndex = "ERR_204_CORRUPT_INDEX"

	// Validation errors (400-499)
	ErrCodeRecordTooLarge  = "ERR_401_RECORD_TOO_LARGE"
	ErrCodeRecordMalformed = "ERR_402_RECORD_MALFORMED"
	ErrCodeFieldMissing    = "ERR_403_FIELD_MISSING"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSessionState = "ERR_502_SESSION_STATE"
	ErrCodeDocIDDesync  = "ERR_503_DOCID_DESYNC"
	ErrCodeUnknownSlice = "ERR_504_UNKNOWN_SLICE_TYPE"
)

// categoryFromCode derives the category from the code's number range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Desynchronized document IDs mean blob and offset writes already issued
// for the predicted ID are keyed wrong; nothing can be salvaged in-process.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDocIDDesync, ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeStoreWrite, ErrCodeStoreFlush:
		return SeverityWarning
	default:
		return SeverityError
	}
}
