package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, preserving its code
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeDataInvalid   = "DATA_INVALID"
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeNotFound      = "NOT_FOUND"
	CodeStorageError  = "STORAGE_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// DataInvalid reports malformed or insufficient input data: missing values,
// degenerate variables, zero-probability marginals, cardinality overflows.
func DataInvalid(message string) *AppError {
	return New(CodeDataInvalid, message)
}

// DataInvalidf is DataInvalid with formatting.
func DataInvalidf(format string, args ...interface{}) *AppError {
	return DataInvalid(fmt.Sprintf(format, args...))
}

// ConfigInvalid reports invalid analysis parameters: iteration counts,
// permutation group references, thresholds, alpha levels.
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// ConfigInvalidf is ConfigInvalid with formatting.
func ConfigInvalidf(format string, args ...interface{}) *AppError {
	return ConfigInvalid(fmt.Sprintf(format, args...))
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func StorageError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeStorageError,
		Message: message,
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// IsDataInvalid reports whether err carries the DATA_INVALID code.
func IsDataInvalid(err error) bool {
	return GetCode(err) == CodeDataInvalid
}

// IsConfigInvalid reports whether err carries the CONFIG_INVALID code.
func IsConfigInvalid(err error) bool {
	return GetCode(err) == CodeConfigInvalid
}
