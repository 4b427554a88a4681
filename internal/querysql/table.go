package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/scopeq/internal/model"
)

// CreateTable renders a CREATE TABLE IF NOT EXISTS statement for m. It
// exists to seed fixture databases; the query core never alters schemas.
//
// An integer identity is generated by the database (INTEGER PRIMARY KEY
// on SQLite, BIGSERIAL on Postgres). A string identity is supplied by the
// engine on insert.
func (c *Compiler) CreateTable(m *model.Model) string {
	cols := make([]string, 0, len(m.Fields()))
	for _, f := range m.Fields() {
		col := QuoteIdent(f.Name) + " " + c.columnType(f, f.Name == m.IDField)
		if f.Name == m.IDField {
			col += " PRIMARY KEY"
		} else if f.Mandatory {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(m.Table), strings.Join(cols, ", "))
}

func (c *Compiler) columnType(f model.Field, identity bool) string {
	pg := c.Dialect == Postgres
	switch f.Type {
	case model.TypeInteger:
		switch {
		case identity && pg:
			return "BIGSERIAL"
		case pg:
			return "BIGINT"
		default:
			return "INTEGER"
		}
	case model.TypeFloat:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case model.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// DropTable renders a DROP TABLE IF EXISTS statement for fixture resets.
func (c *Compiler) DropTable(m *model.Model) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(m.Table)
}
