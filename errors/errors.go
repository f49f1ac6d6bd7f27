package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Fatal reports whether the error must stop the step.
func (e *AppError) Fatal() bool { return IsFatalCode(e.Code) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// IsCode reports whether err, or any error it wraps, is an AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// --- Constructors ---

// Configuration creates an error for an invalid step setting.
func Configuration(setting, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf("invalid configuration for %s: %s", setting, reason),
		Details: map[string]any{"setting": setting},
	}
}

// UnresolvedField creates an error for a configured field missing from the input schema.
func UnresolvedField(role, field string) *AppError {
	return &AppError{
		Code:    ErrCodeUnresolvedField,
		Message: fmt.Sprintf("%s field %q not found in input schema", role, field),
		Details: map[string]any{"role": role, "field": field},
	}
}

// SchemaDrift creates an error for a value whose type differs from the one first observed.
func SchemaDrift(field string, was, now any) *AppError {
	return &AppError{
		Code:    ErrCodeSchemaDrift,
		Message: fmt.Sprintf("field %q changed type from %T to %T", field, was, now),
		Details: map[string]any{"field": field},
	}
}

// ParameterResolution creates an error for a parameter that could not be resolved.
func ParameterResolution(variable string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeParameterResolution,
		Message: fmt.Sprintf("unable to resolve parameter %q", variable),
		Details: map[string]any{"variable": variable},
		Cause:   cause,
	}
}

// Invocation creates an error for a failed nested pipeline run.
func Invocation(pipeline string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeInvocation,
		Message:   fmt.Sprintf("sub-pipeline %q failed", pipeline),
		Retryable: true,
		Details:   map[string]any{"pipeline": pipeline},
		Cause:     cause,
	}
}

// Stopped creates an error for work abandoned after a stop request.
func Stopped(what string) *AppError {
	return &AppError{
		Code:    ErrCodeStopped,
		Message: fmt.Sprintf("%s stopped", what),
	}
}

// NotFound creates an error for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: details,
	}
}

// Validation creates an error for input that failed validation.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}

// Internal creates an error for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "an unexpected error occurred",
		Cause:   cause,
	}
}

// Storage creates an error for a persistence failure.
func Storage(operation string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeStorage,
		Message:   fmt.Sprintf("storage operation %s failed", operation),
		Retryable: true,
		Details:   map[string]any{"operation": operation},
		Cause:     cause,
	}
}
