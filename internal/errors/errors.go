package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a MoodMart error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrNoHistory       ErrorCode = "NO_HISTORY"        // 404
	ErrPayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE" // 413
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// MoodError represents a structured error with code, status, and details.
type MoodError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MoodError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MoodError {
	return &MoodError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(what string) *MoodError {
	return &MoodError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewFileNotFound creates a 404 error for a path that does not exist.
func NewFileNotFound(path string) *MoodError {
	return &MoodError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoHistory creates a 404 error returned when the mood log has no entries yet.
func NewNoHistory() *MoodError {
	return &MoodError{
		Code:    ErrNoHistory,
		Status:  404,
		Message: "no mood history yet",
	}
}

// NewPayloadTooLarge creates a 413 error for oversized uploads.
func NewPayloadTooLarge(max, actual int64) *MoodError {
	return &MoodError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("upload exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its caller.
func NewCancelled(op string) *MoodError {
	return &MoodError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MoodError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MoodError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err is (or wraps) a MoodError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MoodError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// As returns err as a MoodError, converting unknown errors to INTERNAL.
func As(err error) *MoodError {
	var mErr *MoodError
	if stderrors.As(err, &mErr) {
		return mErr
	}
	return NewInternal(err)
}
