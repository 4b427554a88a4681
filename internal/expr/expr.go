// Package expr evaluates pure expression conditions with CEL.
//
// Every declared model field is a dynamically typed CEL variable. Fields
// absent from a row are bound to null. Expressions must produce a bool.
package expr

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/scope"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Evaluator compiles and caches CEL programs over a fixed field list.
// It is safe for concurrent use.
type Evaluator struct {
	env      *cel.Env
	fields   []string
	prgCache sync.Map // map[string]cel.Program
}

var (
	_ scope.ExpressionEvaluator = (*Evaluator)(nil)
	_ scope.ExpressionChecker   = (*Evaluator)(nil)
)

// NewEvaluator declares fields as CEL variables. Names that are not
// valid CEL identifiers are not addressable from expressions.
func NewEvaluator(fields []string) (*Evaluator, error) {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	var declared []string
	for _, f := range fields {
		if !identifier.MatchString(f) {
			continue
		}
		opts = append(opts, cel.Variable(f, cel.DynType))
		declared = append(declared, f)
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	return &Evaluator{env: env, fields: declared}, nil
}

// CheckExpression compiles expr without evaluating it.
func (e *Evaluator) CheckExpression(expr string) error {
	_, err := e.program(expr)
	return err
}

// EvaluateExpression evaluates expr against row.
func (e *Evaluator) EvaluateExpression(expr string, row ir.Row) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	activation := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		activation[f] = ir.ToGo(row.Get(f))
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return false, &Error{Expr: expr, Stage: "eval", Err: err}
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, &Error{Expr: expr, Stage: "eval", Err: fmt.Errorf("expression must return bool, got %s", out.Type().TypeName())}
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	if val, ok := e.prgCache.Load(expr); ok {
		return val.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &Error{Expr: expr, Stage: "compile", Err: issues.Err()}
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, &Error{Expr: expr, Stage: "compile", Err: fmt.Errorf("expression must return bool, got %s", out)}
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, &Error{Expr: expr, Stage: "program", Err: err}
	}
	e.prgCache.Store(expr, prg)
	return prg, nil
}

// Error reports an expression that failed to compile or evaluate.
type Error struct {
	Expr  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %q: %s error: %v", e.Expr, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
