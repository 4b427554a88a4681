package scope

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes predicate errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates a condition operator outside the
	// supported set.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeUnsupportedExpression indicates a pure expression condition was
	// evaluated without an expression evaluator.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeInvalidCondition indicates malformed constructor arguments.
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeInvalidPattern indicates a REGEXP pattern that does not compile.
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"

	// ErrCodeTypeMismatch indicates a condition value that cannot be
	// compared with the field's declared type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
)

// Error is a predicate construction or evaluation error.
type Error struct {
	Code     ErrorCode
	Message  string
	Operand  string
	Operator string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("%s: %s (operand=%s, operator=%s)", e.Code, e.Message, e.Operand, e.Operator)
	}
	if e.Operand != "" {
		return fmt.Sprintf("%s: %s (operand=%s)", e.Code, e.Message, e.Operand)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsupportedOperator returns true if err is an unsupported operator error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedOperator(err error) bool {
	return hasCode(err, ErrCodeUnsupportedOperator)
}

// IsUnsupportedExpression returns true if err is an unsupported expression error.
func IsUnsupportedExpression(err error) bool {
	return hasCode(err, ErrCodeUnsupportedExpression)
}

// IsInvalidCondition returns true if err is a malformed condition error.
func IsInvalidCondition(err error) bool {
	return hasCode(err, ErrCodeInvalidCondition)
}

// IsTypeMismatch returns true if err is a type mismatch error.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewUnsupportedOperatorError names the offending operator.
func NewUnsupportedOperatorError(operand, operator string) *Error {
	return &Error{
		Code:     ErrCodeUnsupportedOperator,
		Message:  fmt.Sprintf("unsupported operator %q", operator),
		Operand:  operand,
		Operator: operator,
	}
}

// NewUnsupportedExpressionError is returned when no evaluator is configured.
func NewUnsupportedExpressionError(expr string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedExpression,
		Message: "expression conditions require an expression evaluator",
		Operand: expr,
	}
}

func newInvalidConditionError(operand, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidCondition,
		Message: fmt.Sprintf(format, args...),
		Operand: operand,
	}
}

// NewTypeMismatchError reports a value or operator the field's kind
// cannot take.
func NewTypeMismatchError(operand, operator, format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeTypeMismatch,
		Message:  fmt.Sprintf(format, args...),
		Operand:  operand,
		Operator: operator,
	}
}
