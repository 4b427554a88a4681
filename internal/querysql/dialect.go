package querysql

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect selects SQL syntax details. Its value is the database/sql driver
// name the dialect is executed through.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the common spellings of the supported dialects.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", name)
	}
}

// BindType returns the sqlx placeholder style of d.
func (d Dialect) BindType() int {
	return sqlx.BindType(string(d))
}

// Rebind rewrites ? placeholders into the dialect's style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.BindType(), query)
}

// QuoteIdent quotes a table or column name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// textCollation makes text ordering byte-wise in both dialects.
func (d Dialect) textCollation() string {
	if d == Postgres {
		return ` COLLATE "C"`
	}
	return " COLLATE BINARY"
}

func (d Dialect) regexpOperator() string {
	if d == Postgres {
		return "~"
	}
	return "REGEXP"
}
