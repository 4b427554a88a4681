package query

import (
	"errors"
	"fmt"

	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/scope"
)

// ErrorCode categorizes query errors.
type ErrorCode string

const (
	// ErrCodeExecutionFailed wraps any backend failure during a terminal call.
	ErrCodeExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"

	// ErrCodeIdentityRequired indicates an identity-scoped operation on a
	// model without an identity field.
	ErrCodeIdentityRequired ErrorCode = "IDENTITY_REQUIRED"

	// ErrCodeRecordNotFound indicates a strict load found nothing.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeUnsupportedAggregate indicates an aggregate outside SUM, AVG,
	// MIN and MAX.
	ErrCodeUnsupportedAggregate ErrorCode = "UNSUPPORTED_AGGREGATE"

	// ErrCodeModeConflict indicates a mode-committing call on a query whose
	// mode is already committed elsewhere.
	ErrCodeModeConflict ErrorCode = "MODE_CONFLICT"

	// ErrCodeConsumed indicates a second terminal call on the same query.
	ErrCodeConsumed ErrorCode = "QUERY_CONSUMED"

	// ErrCodeReadOnly indicates a write against a read-only model.
	ErrCodeReadOnly ErrorCode = "READ_ONLY"

	// ErrCodeInvalidGroup indicates a grouped projection that cannot be
	// evaluated: no group fields, a duplicate column name, or an order key
	// outside the group fields.
	ErrCodeInvalidGroup ErrorCode = "INVALID_GROUP"
)

// Error is a query error. Execution failures carry the backend cause and
// a debug snapshot of the query at the time of failure.
type Error struct {
	Code    ErrorCode
	Message string
	Model   string

	// Debug is set for QUERY_EXECUTION_FAILED.
	Debug *Debug

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsExecutionFailed returns true if err wraps a backend failure.
// Uses errors.As to handle wrapped errors.
func IsExecutionFailed(err error) bool {
	return hasCode(err, ErrCodeExecutionFailed)
}

// IsIdentityRequired returns true if err is an identity required error.
func IsIdentityRequired(err error) bool {
	return hasCode(err, ErrCodeIdentityRequired)
}

// IsRecordNotFound returns true if err is a record not found error.
func IsRecordNotFound(err error) bool {
	return hasCode(err, ErrCodeRecordNotFound)
}

// IsUnsupportedAggregate returns true if err names an unsupported aggregate.
func IsUnsupportedAggregate(err error) bool {
	return hasCode(err, ErrCodeUnsupportedAggregate)
}

// IsModeConflict returns true if err is a mode conflict error.
func IsModeConflict(err error) bool {
	return hasCode(err, ErrCodeModeConflict)
}

// IsConsumed returns true if err reports a reused query.
func IsConsumed(err error) bool {
	return hasCode(err, ErrCodeConsumed)
}

// IsReadOnly returns true if err reports a write to a read-only model.
func IsReadOnly(err error) bool {
	return hasCode(err, ErrCodeReadOnly)
}

// IsInvalidGroup returns true if err rejects a grouped projection.
func IsInvalidGroup(err error) bool {
	return hasCode(err, ErrCodeInvalidGroup)
}

// DebugOf returns the debug snapshot attached to an execution failure.
func DebugOf(err error) (*Debug, bool) {
	var qe *Error
	if errors.As(err, &qe) && qe.Debug != nil {
		return qe.Debug, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost typed error in err's chain,
// or "ERROR" when none carries one.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *Error:
			return string(v.Code)
		case *scope.Error:
			return string(v.Code)
		case *model.FieldError:
			return string(v.Code)
		case *model.ValidationError:
			return string(v.Code)
		}
	}
	return "ERROR"
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	for err != nil {
		if !errors.As(err, &qe) {
			return false
		}
		if qe.Code == code {
			return true
		}
		err = qe.Err
	}
	return false
}

// NewIdentityRequiredError creates an IDENTITY_REQUIRED error.
func NewIdentityRequiredError(model, op string) *Error {
	return &Error{
		Code:    ErrCodeIdentityRequired,
		Message: fmt.Sprintf("%s requires an identity field", op),
		Model:   model,
	}
}

// NewRecordNotFoundError creates a RECORD_NOT_FOUND error.
func NewRecordNotFoundError(model string, id any) *Error {
	msg := "no record matches the model scope"
	if id != nil {
		msg = fmt.Sprintf("record with id %v was not found", id)
	}
	return &Error{Code: ErrCodeRecordNotFound, Message: msg, Model: model}
}

// NewUnsupportedAggregateError creates an UNSUPPORTED_AGGREGATE error.
func NewUnsupportedAggregateError(fn string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedAggregate,
		Message: fmt.Sprintf("unsupported aggregate %q", fn),
	}
}

func newInvalidGroupError(model, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidGroup,
		Message: fmt.Sprintf(format, args...),
		Model:   model,
	}
}

func newModeConflictError(model string, have, want Mode) *Error {
	return &Error{
		Code:    ErrCodeModeConflict,
		Message: fmt.Sprintf("cannot switch query from %s to %s", have, want),
		Model:   model,
	}
}
