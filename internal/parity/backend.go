package parity

import (
	"context"
	"fmt"

	"github.com/roach88/scopeq/internal/arraydb"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/sqldb"
	"github.com/roach88/scopeq/internal/store"
)

// Backend opens a fresh persistence for one scenario run. The returned
// function releases it.
type Backend struct {
	Name string
	Open func(ctx context.Context, models []*model.Model) (query.Persistence, func() error, error)
}

func noClose() error { return nil }

// Array is the in-memory backend.
func Array() Backend {
	return Backend{
		Name: "array",
		Open: func(context.Context, []*model.Model) (query.Persistence, func() error, error) {
			return arraydb.New(arraydb.NewStorage()), noClose, nil
		},
	}
}

// SQLite runs against a private in-memory SQLite database.
func SQLite() Backend {
	return Backend{
		Name: "sqlite",
		Open: func(context.Context, []*model.Model) (query.Persistence, func() error, error) {
			s, err := store.Open(":memory:")
			if err != nil {
				return nil, nil, err
			}
			return sqldb.New(s), s.Close, nil
		},
	}
}

// Postgres runs against the database at dsn. The scenario's tables are
// dropped before the run so every run starts empty.
func Postgres(dsn string) Backend {
	return Backend{
		Name: "postgres",
		Open: func(ctx context.Context, models []*model.Model) (query.Persistence, func() error, error) {
			s, err := store.OpenPostgres(ctx, dsn)
			if err != nil {
				return nil, nil, err
			}
			p := sqldb.New(s)
			for _, m := range models {
				if _, err := s.Exec(ctx, p.Compiler().DropTable(m)); err != nil {
					s.Close()
					return nil, nil, fmt.Errorf("drop table %s: %w", m.Table, err)
				}
			}
			return p, s.Close, nil
		},
	}
}

// DefaultBackends are the backends every scenario is checked against.
func DefaultBackends() []Backend {
	return []Backend{Array(), SQLite()}
}

// ParseBackends resolves backend names. "postgres" requires a DSN.
func ParseBackends(names []string, postgresDSN string) ([]Backend, error) {
	if len(names) == 0 {
		return DefaultBackends(), nil
	}
	out := make([]Backend, 0, len(names))
	for _, name := range names {
		switch name {
		case "array":
			out = append(out, Array())
		case "sqlite", "sqlite3":
			out = append(out, SQLite())
		case "postgres":
			if postgresDSN == "" {
				return nil, fmt.Errorf("backend postgres requires a database DSN")
			}
			out = append(out, Postgres(postgresDSN))
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}
	return out, nil
}
