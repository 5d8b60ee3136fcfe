package errors

import (
	"errors"
	"fmt"
)

// IndexError is the structured error type used across wikindex.
// It carries enough context for logging and for deciding whether a
// caller should retry the failed operation.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_201_WRITER_LOCKED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category derived from the code.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation may succeed on a later attempt.
	Retryable bool
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another IndexError by code so that errors.Is works against
// the sentinel values below.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an IndexError. Category, severity and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError from an existing error.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrWriterLocked      = &IndexError{Code: ErrCodeWriterLocked}
	ErrIndexOpen         = &IndexError{Code: ErrCodeIndexOpen}
	ErrIndexClosed       = &IndexError{Code: ErrCodeIndexClosed}
	ErrSourceUnavailable = &IndexError{Code: ErrCodeSourceUnavailable}
	ErrInvalidEntry      = &IndexError{Code: ErrCodeInvalidEntry}
	ErrInvalidQuery      = &IndexError{Code: ErrCodeInvalidQuery}
)

// IsRetryable reports whether err, or any IndexError in its chain, is retryable.
func IsRetryable(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" when err is not an IndexError.
func GetCode(err error) string {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
