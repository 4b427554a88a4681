package sqldb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/querysql"
	"github.com/roach88/scopeq/internal/store"
)

// Persistence runs queries against a SQL store.
type Persistence struct {
	store    *store.Store
	compiler *querysql.Compiler
}

var _ query.Persistence = (*Persistence)(nil)

// New creates a persistence over s in the store's dialect.
func New(s *store.Store) *Persistence {
	return &Persistence{store: s, compiler: querysql.NewCompiler(s.Dialect())}
}

// Store returns the backing store.
func (p *Persistence) Store() *store.Store {
	return p.store
}

// Compiler returns the statement compiler.
func (p *Persistence) Compiler() *querysql.Compiler {
	return p.compiler
}

// NewEngine implements query.Persistence.
func (p *Persistence) NewEngine(*model.Model) (query.Engine, error) {
	return &Engine{store: p.store, compiler: p.compiler}, nil
}

// Engine executes query plans as SQL.
type Engine struct {
	query.BaseEngine
	store    *store.Store
	compiler *querysql.Compiler
}

var _ query.Engine = (*Engine)(nil)

// InitWhere compiles the scope once so unsupported operators and
// expressions fail while the query is built.
func (e *Engine) InitWhere(p *query.Plan) error {
	_, _, err := e.compiler.WhereFor(p.Model, p.Scope)
	return err
}

// DoExecute implements query.Engine.
func (e *Engine) DoExecute(ctx context.Context, p *query.Plan) (*query.Result, error) {
	switch p.Mode {
	case query.ModeSelect:
		rows, err := e.DoGet(ctx, p)
		if err != nil {
			return nil, err
		}
		return &query.Result{Columns: p.Columns(), Rows: rows, InsertID: ir.Null{}}, nil

	case query.ModeInsert:
		return e.insert(ctx, p)

	case query.ModeUpdate, query.ModeDelete:
		st, err := e.compiler.Compile(p)
		if err != nil {
			return nil, err
		}
		res, err := e.store.Exec(ctx, st.SQL, st.Params...)
		if err != nil {
			return nil, classify(p.Model, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		slog.Debug("sql write", "table", p.Model.Table, "mode", p.Mode.String(), "affected", affected)
		return &query.Result{InsertID: ir.Null{}, Affected: affected}, nil

	default:
		return nil, fmt.Errorf("unsupported mode %s", p.Mode)
	}
}

// insert generates string identities, runs the statement and reports the
// identity of the new row.
func (e *Engine) insert(ctx context.Context, p *query.Plan) (*query.Result, error) {
	m := p.Model
	plan := p.Clone()
	explicit := false

	if idType, ok := m.IDType(); ok {
		if ir.IsNull(plan.Data.Get(m.IDField)) {
			delete(plan.Data, m.IDField)
			switch idType {
			case model.TypeInteger:
			case model.TypeString:
				token, err := uuid.NewV7()
				if err != nil {
					return nil, fmt.Errorf("generate identity: %w", err)
				}
				plan.Data[m.IDField] = ir.Text(token.String())
			default:
				return nil, fmt.Errorf("cannot generate identity of type %s for %s", idType, m.Table)
			}
		} else {
			explicit = true
		}
	}

	st, err := e.compiler.Compile(plan)
	if err != nil {
		return nil, err
	}

	var id ir.Value = ir.Null{}
	if st.Returning {
		rows, err := e.query(ctx, st, map[string]ir.Kind{m.IDField: idKind(m)})
		if err != nil {
			return nil, classify(m, err)
		}
		if len(rows) > 0 {
			id = rows[0].Get(m.IDField)
		}
	} else {
		res, err := e.store.Exec(ctx, st.SQL, st.Params...)
		if err != nil {
			return nil, classify(m, err)
		}
		switch {
		case !m.HasIDField():
		case plan.Data.Has(m.IDField):
			id = plan.Data.Get(m.IDField)
		default:
			n, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("last insert id: %w", err)
			}
			id = ir.Int(n)
		}
	}

	if explicit && e.store.Dialect() == querysql.Postgres && idKind(m) == ir.KindInt {
		if err := e.syncSequence(ctx, m); err != nil {
			return nil, err
		}
	}

	slog.Debug("sql insert", "table", m.Table, "id", id.String())
	return &query.Result{InsertID: id, Affected: 1}, nil
}

// syncSequence moves a Postgres serial past explicitly inserted
// identities so later generated ones do not collide.
func (e *Engine) syncSequence(ctx context.Context, m *model.Model) error {
	q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence(?, ?), (SELECT MAX(%s) FROM %s))",
		querysql.QuoteIdent(m.IDField), querysql.QuoteIdent(m.Table))
	if _, err := e.store.Exec(ctx, e.store.DB().Rebind(q), querysql.QuoteIdent(m.Table), m.IDField); err != nil {
		return fmt.Errorf("sync identity sequence of %s: %w", m.Table, err)
	}
	return nil
}

// DoGet implements query.Engine.
func (e *Engine) DoGet(ctx context.Context, p *query.Plan) ([]ir.Row, error) {
	st, err := e.compiler.Compile(p)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, st, columnKinds(p))
}

// DoGetRow implements query.Engine.
func (e *Engine) DoGetRow(ctx context.Context, p *query.Plan) (ir.Row, error) {
	rows, err := e.DoGet(ctx, p)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// DoGetOne implements query.Engine.
func (e *Engine) DoGetOne(ctx context.Context, p *query.Plan) (ir.Value, error) {
	row, err := e.DoGetRow(ctx, p)
	if err != nil {
		return nil, err
	}
	return query.FirstValue(p, row), nil
}

func (e *Engine) query(ctx context.Context, st querysql.Statement, kinds map[string]ir.Kind) ([]ir.Row, error) {
	slog.Debug("sql query", "sql", st.SQL, "params", len(st.Params))

	rows, err := e.store.Query(ctx, st.SQL, st.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []ir.Row
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(ir.Row, len(cols))
		for i, col := range cols {
			v, err := Decode(raw[i], kinds[col])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTable creates the table of m when it does not exist. Fixtures use
// it to seed databases.
func (p *Persistence) CreateTable(ctx context.Context, m *model.Model) error {
	if _, err := p.store.Exec(ctx, p.compiler.CreateTable(m)); err != nil {
		return fmt.Errorf("create table %s: %w", m.Table, err)
	}
	return nil
}
