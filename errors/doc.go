// Package errors provides the structured error type used across etlkit.
// Errors carry a machine-readable code, a human-readable message, optional
// details and an underlying cause, and stay compatible with errors.Is/As.
package errors
