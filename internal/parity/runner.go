package parity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scopeq/internal/fixture"
	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/scope"
)

// Run executes s against every backend (DefaultBackends when none are
// given) and compares the outcomes step by step. Each backend starts from
// an empty store seeded with the scenario fixture.
//
// Execution flow:
// 1. Compile the scenario models
// 2. Per backend: open, seed, run every step, close
// 3. Compare outcomes against the first backend
// 4. Check expectations against the agreed outcome
func Run(ctx context.Context, s *Scenario, backends ...Backend) (*Result, error) {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}

	models, err := s.CompileModels()
	if err != nil {
		return nil, fmt.Errorf("compile models: %w", err)
	}
	for i, step := range s.Steps {
		if _, ok := fixture.Lookup(models, step.Model); !ok {
			return nil, fmt.Errorf("steps[%d]: unknown model %q", i, step.Model)
		}
	}

	result := NewResult()
	outcomes := make([][]Outcome, len(backends))
	for i, b := range backends {
		result.Backends = append(result.Backends, b.Name)
		out, err := runBackend(ctx, s, models, b)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", b.Name, err)
		}
		outcomes[i] = out
	}

	for i, step := range s.Steps {
		label := stepLabel(i, step)
		ref := outcomes[0][i]
		for j := 1; j < len(backends); j++ {
			if got := outcomes[j][i]; !ref.Equal(got) {
				result.AddError(fmt.Sprintf("%s: %s and %s disagree: %s vs %s",
					label, backends[0].Name, backends[j].Name, render(ref), render(got)))
			}
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     i,
			Step:    step.Name,
			Model:   step.Model,
			Action:  step.Action(),
			Outcome: ref,
		})
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ref) {
				result.AddError(fmt.Sprintf("%s: %s", label, msg))
			}
		}
	}

	slog.Debug("parity scenario finished", "scenario", s.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

func stepLabel(i int, step Step) string {
	if step.Name != "" {
		return fmt.Sprintf("steps[%d] %s", i, step.Name)
	}
	return fmt.Sprintf("steps[%d]", i)
}

func render(o Outcome) string {
	b, err := o.Canonical()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

func runBackend(ctx context.Context, s *Scenario, models []*model.Model, b Backend) ([]Outcome, error) {
	p, closeFn, err := b.Open(ctx, models)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if err := s.Fixture.Apply(ctx, p, models); err != nil {
		return nil, fmt.Errorf("apply fixture: %w", err)
	}

	out := make([]Outcome, len(s.Steps))
	for i, step := range s.Steps {
		m, _ := fixture.Lookup(models, step.Model)
		out[i] = RunStep(ctx, p, m, step)
		slog.Debug("parity step", "backend", b.Name, "step", i, "action", step.Action(), "error", out[i].Error)
	}
	return out, nil
}

func failed(err error) Outcome {
	return Outcome{Error: query.CodeOf(err), Cause: err}
}

// RunStep builds and executes one step against p. Failures are reported
// in the outcome as an error code, never returned.
func RunStep(ctx context.Context, p query.Persistence, m *model.Model, step Step) Outcome {
	q, err := query.New(p, m)
	if err != nil {
		return failed(err)
	}
	if err := Build(q, step); err != nil {
		return failed(err)
	}
	out, err := execute(ctx, q, m, step)
	if err != nil {
		return failed(err)
	}
	return out
}

// Build applies the step's scope, identity, order and limit to q.
func Build(q *query.Query, step Step) error {
	if len(step.Where) > 0 {
		junction, err := scope.ParseJunction(step.Junction)
		if err != nil {
			return err
		}
		s, err := scope.Parse(step.Where, junction)
		if err != nil {
			return err
		}
		var n scope.Node = s
		if step.Negate {
			n = scope.Not(s)
		}
		if err := q.WhereNode(n); err != nil {
			return err
		}
	}
	if step.ID != nil {
		if err := q.WhereID(step.ID); err != nil {
			return err
		}
	}
	for _, o := range step.Order {
		if err := q.Order(o.Field, o.Desc); err != nil {
			return err
		}
	}
	if step.Limit != nil {
		if err := q.Limit(step.Limit.Count, step.Limit.Offset); err != nil {
			return err
		}
	}
	return nil
}

func execute(ctx context.Context, q *query.Query, m *model.Model, step Step) (Outcome, error) {
	switch step.Action() {
	case "count":
		if err := q.Count(""); err != nil {
			return Outcome{}, err
		}
		return one(ctx, q)

	case "exists":
		if err := q.Exists(); err != nil {
			return Outcome{}, err
		}
		return one(ctx, q)

	case "aggregate":
		a := step.Aggregate
		if err := q.Aggregate(a.Func, a.Field, "", a.Coalesce); err != nil {
			return Outcome{}, err
		}
		return one(ctx, q)

	case "group":
		if err := q.Group(step.Group.Fields, step.Group.QueryColumns()...); err != nil {
			return Outcome{}, err
		}
		return rows(ctx, q)

	case "field":
		if err := q.Field(step.Field, ""); err != nil {
			return Outcome{}, err
		}
		return rows(ctx, q)

	case "find":
		row, err := q.Find(ctx, step.Find)
		if err != nil {
			return Outcome{}, err
		}
		if row == nil {
			return Outcome{Rows: []ir.Row{}}, nil
		}
		return Outcome{Rows: []ir.Row{row}}, nil

	case "insert":
		data, err := ir.RowFromGo(step.Insert)
		if err != nil {
			return Outcome{}, err
		}
		if err := q.Insert(data); err != nil {
			return Outcome{}, err
		}
		res, err := q.Execute(ctx)
		if err != nil {
			return Outcome{}, err
		}
		id := res.InsertID
		if t, ok := m.IDType(); ok && t == model.TypeString && ir.IsNull(data.Get(m.IDField)) {
			id = ir.Text(GeneratedID)
		}
		return Outcome{InsertID: id, Affected: &res.Affected}, nil

	case "update":
		data, err := ir.RowFromGo(step.Update)
		if err != nil {
			return Outcome{}, err
		}
		if err := q.Update(data); err != nil {
			return Outcome{}, err
		}
		return write(ctx, q)

	case "delete":
		if err := q.Delete(); err != nil {
			return Outcome{}, err
		}
		return write(ctx, q)

	default:
		if err := q.Select(step.Select...); err != nil {
			return Outcome{}, err
		}
		return rows(ctx, q)
	}
}

func one(ctx context.Context, q *query.Query) (Outcome, error) {
	v, err := q.GetOne(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Value: v}, nil
}

func rows(ctx context.Context, q *query.Query) (Outcome, error) {
	r, err := q.Get(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if r == nil {
		r = []ir.Row{}
	}
	return Outcome{Rows: r}, nil
}

func write(ctx context.Context, q *query.Query) (Outcome, error) {
	res, err := q.Execute(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Affected: &res.Affected}, nil
}
