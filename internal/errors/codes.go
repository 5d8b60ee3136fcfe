// Package errors provides structured error handling for wikindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index storage errors (writer lock, open, corruption)
//   - 3XX: Collaborator errors (content source, brokers, extraction services)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig       Category = "CONFIG"
	CategoryIndex        Category = "INDEX"
	CategoryCollaborator Category = "COLLABORATOR"
	CategoryValidation   Category = "VALIDATION"
	CategoryInternal     Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error for the current operation.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeWriterLocked = "ERR_201_WRITER_LOCKED"
	ErrCodeIndexOpen    = "ERR_202_INDEX_OPEN"
	ErrCodeIndexCommit  = "ERR_203_INDEX_COMMIT"
	ErrCodeIndexClosed  = "ERR_204_INDEX_CLOSED"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"

	// Collaborator errors (300-399)
	ErrCodeSourceUnavailable = "ERR_301_SOURCE_UNAVAILABLE"
	ErrCodeBroker            = "ERR_302_BROKER"
	ErrCodeExtraction        = "ERR_303_EXTRACTION"

	// Validation errors (400-499)
	ErrCodeInvalidEntry = "ERR_401_INVALID_ENTRY"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeRebuildFailed = "ERR_502_REBUILD_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a transient condition.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeWriterLocked, ErrCodeSourceUnavailable, ErrCodeBroker:
		return true
	default:
		return false
	}
}
