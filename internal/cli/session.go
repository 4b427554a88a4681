package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scopeq/internal/arraydb"
	"github.com/roach88/scopeq/internal/fixture"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/sqldb"
	"github.com/roach88/scopeq/internal/store"
)

// session is an open backend with the models loaded from --models.
type session struct {
	models *LoadResult
	p      query.Persistence
	close  func() error
}

// openSession loads the models, opens the configured backend, creates
// missing SQL tables and applies --fixture when set. Errors are already
// reported through f.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	loaded, err := LoadModels(opts.Models)
	if err != nil {
		return nil, failLoad(f, err)
	}
	slog.Debug("loaded models", "dir", opts.Models, "files", loaded.FileCount, "models", len(loaded.Models))

	p, closeFn, err := openBackend(ctx, opts.Backend, opts.DB)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("open %s backend: %v", opts.Backend, err), nil)
	}

	var fx *fixture.Fixture
	if opts.Fixture != "" {
		if fx, err = fixture.Load(opts.Fixture); err != nil {
			closeFn()
			return nil, f.Fail(ExitCommandError, ErrCodeFixture, err.Error(), nil)
		}
	}
	if err := fx.Apply(ctx, p, loaded.Models); err != nil {
		closeFn()
		return nil, f.Fail(ExitCommandError, ErrCodeFixture, err.Error(), nil)
	}
	if fx != nil {
		slog.Debug("applied fixture", "path", opts.Fixture, "rows", fx.Rows())
	}

	return &session{models: loaded, p: p, close: closeFn}, nil
}

func (s *session) model(name string) (*model.Model, error) {
	return s.models.Model(name)
}

func openBackend(ctx context.Context, backend, db string) (query.Persistence, func() error, error) {
	switch backend {
	case "array":
		return arraydb.New(arraydb.NewStorage()), func() error { return nil }, nil
	case "sqlite":
		path := db
		if path == "" {
			path = ":memory:"
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return sqldb.New(s), s.Close, nil
	case "postgres":
		s, err := store.OpenPostgres(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		return sqldb.New(s), s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// failLoad reports a LoadModels error with its code.
func failLoad(f *OutputFormatter, err error) error {
	if loadErr, ok := err.(*LoadError); ok {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
