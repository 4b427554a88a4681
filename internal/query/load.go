package query

import (
	"context"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
)

// Load returns the record with identity id and binds m to it. A missing
// record fails RECORD_NOT_FOUND.
func Load(ctx context.Context, p Persistence, m *model.Model, id any) (ir.Row, error) {
	row, err := TryLoad(ctx, p, m, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewRecordNotFoundError(m.Name, id)
	}
	return row, nil
}

// TryLoad is Load returning nil instead of failing when nothing matches.
// m is unloaded in that case.
func TryLoad(ctx context.Context, p Persistence, m *model.Model, id any) (ir.Row, error) {
	if !m.HasIDField() {
		return nil, NewIdentityRequiredError(m.Name, "load")
	}
	q, err := New(p, m)
	if err != nil {
		return nil, err
	}
	row, err := q.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	bind(m, row)
	return row, nil
}

// LoadAny returns the first record of the model's scope and order and
// binds m to it. An empty result fails RECORD_NOT_FOUND.
func LoadAny(ctx context.Context, p Persistence, m *model.Model) (ir.Row, error) {
	row, err := TryLoadAny(ctx, p, m)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewRecordNotFoundError(m.Name, nil)
	}
	return row, nil
}

// TryLoadAny is LoadAny returning nil when nothing matches.
func TryLoadAny(ctx context.Context, p Persistence, m *model.Model) (ir.Row, error) {
	q, err := New(p, m)
	if err != nil {
		return nil, err
	}
	row, err := q.GetRow(ctx)
	if err != nil {
		return nil, err
	}
	bind(m, row)
	return row, nil
}

func bind(m *model.Model, row ir.Row) {
	if row == nil || !m.HasIDField() {
		m.Unload()
		return
	}
	m.SetLoaded(row.Get(m.IDField))
}
