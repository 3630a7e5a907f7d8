package errors

import (
	"fmt"
)

// SdexError is the structured error type for sdex.
// It provides rich context for error handling, logging, and user presentation.
type SdexError struct {
	// Code is the unique error code (e.g., "ERR_201_SOURCE_NOT_FOUND").
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
func (e *SdexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SdexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SdexError.
func (e *SdexError) Is(target error) bool {
	if t, ok := target.(*SdexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SdexError) WithDetail(key, value string) *SdexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SdexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SdexError {
	return &SdexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new SdexError with a formatted message.
func Newf(code string, format string, args ...any) *SdexError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an SdexError from an existing error.
// The error's message becomes the SdexError message.
func Wrap(code string, err error) *SdexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// LoadError creates a fatal dataset-load error (missing/unreadable source).
func LoadError(message string, cause error) *SdexError {
	return New(ErrCodeSourceUnreadable, message, cause)
}

// IndexBuildError creates an index-build error. It is fatal to the
// in-progress build only; the previously active store is unaffected.
func IndexBuildError(message string, cause error) *SdexError {
	return New(ErrCodeIndexBuild, message, cause)
}

// SearchError creates a malformed-query error.
func SearchError(message string, cause error) *SdexError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// DiffError creates a snapshot-comparison error.
func DiffError(message string, cause error) *SdexError {
	return New(ErrCodeDiffFailed, message, cause)
}

// ChangelogDuplicate creates the error for recording a version pair twice.
func ChangelogDuplicate(oldVersion, newVersion string) *SdexError {
	return Newf(ErrCodeChangelogDuplicate,
		"changeset %s -> %s is already recorded", oldVersion, newVersion).
		WithDetail("old_version", oldVersion).
		WithDetail("new_version", newVersion)
}

// ChangelogNotFound creates the error for looking up an unrecorded pair.
func ChangelogNotFound(oldVersion, newVersion string) *SdexError {
	return Newf(ErrCodeChangelogNotFound,
		"no changeset recorded for %s -> %s", oldVersion, newVersion).
		WithDetail("old_version", oldVersion).
		WithDetail("new_version", newVersion)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SdexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SdexError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an SdexError.
// Returns empty string if not an SdexError.
func GetCode(err error) string {
	if se, ok := err.(*SdexError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from an SdexError.
// Returns empty string if not an SdexError.
func GetCategory(err error) Category {
	if se, ok := err.(*SdexError); ok {
		return se.Category
	}
	return ""
}
