package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/scopeq/internal/querysql"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != querysql.SQLite {
		t.Errorf("Dialect() = %q, want %q", s.Dialect(), querysql.SQLite)
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.Exec(ctx, `CREATE TABLE "t" ("id" INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM "t"`).Scan(&count); err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Exec(ctx, `CREATE TABLE "t" ("x" TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.Exec(ctx, `INSERT INTO "t" ("x") VALUES (?)`, "a"); err != nil {
		t.Fatalf("insert on the same connection: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpenDialect_Unsupported(t *testing.T) {
	_, err := OpenDialect(context.Background(), querysql.Dialect("mysql"), "")
	if err == nil {
		t.Error("expected error for unsupported dialect")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := openTemp(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
	if got := db.Rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("Rebind() = %q, want question marks kept", got)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	if err := openTemp(t).verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	// NORMAL = 1
	if err := openTemp(t).verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	if err := openTemp(t).verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Connection hook tests

func TestConnection_LikeIsCaseSensitive(t *testing.T) {
	s := openTemp(t)

	var upper, lower int
	if err := s.DB().QueryRow(`SELECT 'Alpha' LIKE 'alpha', 'Alpha' LIKE 'Al%'`).Scan(&upper, &lower); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if upper != 0 {
		t.Error("LIKE matched across case")
	}
	if lower != 1 {
		t.Error("LIKE prefix did not match")
	}
}

func TestConnection_Regexp(t *testing.T) {
	s := openTemp(t)

	tests := []struct {
		text, pattern string
		want          int
	}{
		{"invoice-42", `^invoice-\d+$`, 1},
		{"invoice-x", `^invoice-\d+$`, 0},
		{"", `^$`, 1},
	}
	for _, tt := range tests {
		var got int
		if err := s.DB().QueryRow(`SELECT ? REGEXP ?`, tt.text, tt.pattern).Scan(&got); err != nil {
			t.Fatalf("REGEXP %q: %v", tt.pattern, err)
		}
		if got != tt.want {
			t.Errorf("%q REGEXP %q = %d, want %d", tt.text, tt.pattern, got, tt.want)
		}
	}

	var got int
	if err := s.DB().QueryRow(`SELECT 'a' REGEXP '('`).Scan(&got); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestErrors_ConstraintViolations(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.Exec(ctx, `CREATE TABLE "t" ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.Exec(ctx, `INSERT INTO "t" ("id", "name") VALUES (1, 'a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := s.Exec(ctx, `INSERT INTO "t" ("id", "name") VALUES (1, 'b')`)
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false", err)
	}
	_, err = s.Exec(ctx, `INSERT INTO "t" ("id") VALUES (2)`)
	if !IsNotNullViolation(err) {
		t.Errorf("IsNotNullViolation(%v) = false", err)
	}
	if IsUniqueViolation(nil) || IsNotNullViolation(os.ErrNotExist) {
		t.Error("unrelated errors must not classify as constraint violations")
	}
}

func TestOpenPostgres(t *testing.T) {
	dsn := os.Getenv("SCOPEQ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCOPEQ_TEST_POSTGRES_DSN not set")
	}

	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() failed: %v", err)
	}
	defer s.Close()

	if got := s.DB().Rebind("SELECT ?, ?"); got != "SELECT $1, $2" {
		t.Errorf("Rebind() = %q", got)
	}
}
