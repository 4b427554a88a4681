package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes model errors.
type ErrorCode string

const (
	// ErrCodeUnknownField indicates a reference to a field the model does not
	// declare.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeValidation indicates row data that violates the field schema.
	ErrCodeValidation ErrorCode = "VALIDATION"
)

// FieldError reports a reference to an undeclared field.
type FieldError struct {
	Code  ErrorCode
	Model string
	Field string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q is not declared (model=%s)", e.Code, e.Field, e.Model)
}

// NewUnknownFieldError creates an UNKNOWN_FIELD error.
func NewUnknownFieldError(model, field string) *FieldError {
	return &FieldError{Code: ErrCodeUnknownField, Model: model, Field: field}
}

// IsUnknownField returns true if err is an unknown field error.
// Uses errors.As to handle wrapped errors.
func IsUnknownField(err error) bool {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeUnknownField
	}
	return false
}

// ValidationError reports row data rejected by the field schema.
type ValidationError struct {
	Code   ErrorCode
	Model  string
	Issues []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (model=%s)", e.Code, strings.Join(e.Issues, "; "), e.Model)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
