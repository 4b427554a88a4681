package sqldb

import (
	"fmt"

	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/store"
)

// ConstraintError reports a write rejected by a database constraint.
type ConstraintError struct {
	Table string
	// Kind is "unique" or "not null".
	Kind string
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violated on %s: %v", e.Kind, e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// classify wraps driver constraint failures into ConstraintError.
func classify(m *model.Model, err error) error {
	switch {
	case store.IsUniqueViolation(err):
		return &ConstraintError{Table: m.Table, Kind: "unique", Err: err}
	case store.IsNotNullViolation(err):
		return &ConstraintError{Table: m.Table, Kind: "not null", Err: err}
	default:
		return err
	}
}
