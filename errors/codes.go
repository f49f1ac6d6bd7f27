package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors (fatal at step initialization)
const (
	// ErrCodeConfiguration indicates an invalid or incomplete step configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeUnresolvedField indicates a configured field name is absent from the input schema.
	ErrCodeUnresolvedField ErrorCode = "UNRESOLVED_FIELD"
	// ErrCodeSchemaDrift indicates a value changed type after the schema was captured.
	ErrCodeSchemaDrift ErrorCode = "SCHEMA_DRIFT"
)

// Runtime errors
const (
	// ErrCodeParameterResolution indicates a parameter could not be resolved.
	ErrCodeParameterResolution ErrorCode = "PARAMETER_RESOLUTION"
	// ErrCodeInvocation indicates a nested pipeline invocation failed.
	ErrCodeInvocation ErrorCode = "INVOCATION_FAILED"
	// ErrCodeStopped indicates the work was abandoned because a stop was requested.
	ErrCodeStopped ErrorCode = "STOPPED"
	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Generic errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeStorage indicates a persistence failure.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeInvocation: true,
	ErrCodeTimeout:    true,
	ErrCodeStorage:    true,
	ErrCodeInternal:   false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

var fatalCodes = map[ErrorCode]bool{
	ErrCodeConfiguration:   true,
	ErrCodeUnresolvedField: true,
	ErrCodeSchemaDrift:     true,
}

// IsFatalCode reports whether the code stops a step during initialization.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
