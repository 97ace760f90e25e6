package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes gateway and mirror errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a missing or invalid table or schema identifier.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeNotFound indicates the referenced table does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeValidation indicates a write that resolves to zero valid columns.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeGateway indicates the backing store rejected a statement.
	ErrCodeGateway ErrorCode = "GATEWAY"
)

// Error is the structured error returned by the store and the mirror.
//
// Error includes the operation and table for diagnostics. Use the IsX
// helpers to branch on the category; they unwrap with errors.As.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation ("load", "upsert", "open", ...).
	Op string

	// Table is the affected table, zero if not applicable.
	Table Table

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Table.Name != "" {
		msg += fmt.Sprintf(" %s", e.Table)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates an Error for an invalid identifier.
func NewConfigurationError(op, message string) *Error {
	return &Error{Code: ErrCodeConfiguration, Op: op, Message: message}
}

// NewNotFoundError creates an Error for a missing table.
func NewNotFoundError(op string, t Table) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Table: t, Message: "table does not exist"}
}

// NewValidationError creates an Error for a write with no usable columns.
func NewValidationError(op string, t Table, message string) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Table: t, Message: message}
}

// NewGatewayError wraps a driver error.
func NewGatewayError(op string, t Table, err error) *Error {
	return &Error{Code: ErrCodeGateway, Op: op, Table: t, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsNotFound reports whether err is a missing-table error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsGatewayError reports whether err is a rejected statement.
func IsGatewayError(err error) bool {
	return hasCode(err, ErrCodeGateway)
}
