package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/scopeq/internal/querysql"
	"github.com/roach88/scopeq/internal/scope"
)

// SQLiteDriver is the database/sql driver name registered for SQLite
// connections with the REGEXP function and case-sensitive LIKE.
const SQLiteDriver = "sqlite3_scopeq"

var registerOnce sync.Once

func registerSQLite() {
	registerOnce.Do(func() {
		sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("regexp", scope.MatchRegexp, true); err != nil {
					return fmt.Errorf("register regexp: %w", err)
				}
				if _, err := conn.Exec("PRAGMA case_sensitive_like = ON", nil); err != nil {
					return fmt.Errorf("enable case_sensitive_like: %w", err)
				}
				return nil
			},
		})
	})
}

// Store is a SQL connection in one dialect.
type Store struct {
	db      *sqlx.DB
	dialect querysql.Dialect
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - case-sensitive LIKE and a REGEXP function, set on every connection
func Open(path string) (*Store, error) {
	registerSQLite()

	db, err := sql.Open(SQLiteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; an in-memory database
	// also lives and dies with its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: sqlx.NewDb(db, string(querysql.SQLite)), dialect: querysql.SQLite}, nil
}

// OpenPostgres connects to a PostgreSQL server through lib/pq.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, string(querysql.Postgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Store{db: db, dialect: querysql.Postgres}, nil
}

// OpenDialect opens a store for dialect. For SQLite the dsn is a file path
// or ":memory:".
func OpenDialect(ctx context.Context, dialect querysql.Dialect, dsn string) (*Store, error) {
	switch dialect {
	case querysql.SQLite:
		return Open(dsn)
	case querysql.Postgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the SQL dialect of the connection.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Query executes a query and returns the resulting rows. Callers are
// responsible for closing them.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return s.db.QueryxContext(ctx, query, args...)
}

// Exec executes a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// applyPragmas sets connection-independent SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
