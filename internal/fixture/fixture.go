// Package fixture seeds query backends from YAML documents.
//
// A fixture lists rows per model:
//
//	tables:
//	  - model: invoice
//	    rows:
//	      - {name: alpha, amount: 10.5, qty: 1}
//	      - {name: beta, qty: 2}
//
// Rows are inserted through the query layer, so they are validated and
// normalized exactly like application inserts.
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
)

// Fixture is a set of rows to seed, grouped by model.
type Fixture struct {
	Tables []Table `yaml:"tables"`
}

// Table holds the rows of one model. Model matches a model name or table.
type Table struct {
	Model string           `yaml:"model"`
	Rows  []map[string]any `yaml:"rows"`
}

// Schema is implemented by persistences whose tables must exist before
// rows can be inserted.
type Schema interface {
	CreateTable(ctx context.Context, m *model.Model) error
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i, t := range f.Tables {
		if t.Model == "" {
			return nil, fmt.Errorf("tables[%d]: model is required", i)
		}
	}
	return &f, nil
}

// Lookup finds a model by name, falling back to table name.
func Lookup(models []*model.Model, name string) (*model.Model, bool) {
	for _, m := range models {
		if m.Name == name {
			return m, true
		}
	}
	for _, m := range models {
		if m.Table == name {
			return m, true
		}
	}
	return nil, false
}

// Apply creates the tables of every model when p implements Schema, then
// inserts the fixture rows in document order.
func (f *Fixture) Apply(ctx context.Context, p query.Persistence, models []*model.Model) error {
	if err := Prepare(ctx, p, models); err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	for i, t := range f.Tables {
		m, ok := Lookup(models, t.Model)
		if !ok {
			return fmt.Errorf("tables[%d]: unknown model %q", i, t.Model)
		}
		for j, raw := range t.Rows {
			row, err := ir.RowFromGo(raw)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", t.Model, j, err)
			}
			if err := insert(ctx, p, m, row); err != nil {
				return fmt.Errorf("%s row %d: %w", t.Model, j, err)
			}
		}
	}
	return nil
}

// Rows counts the rows of the fixture.
func (f *Fixture) Rows() int {
	n := 0
	for _, t := range f.Tables {
		n += len(t.Rows)
	}
	return n
}

// Prepare creates the tables of models when p implements Schema.
func Prepare(ctx context.Context, p query.Persistence, models []*model.Model) error {
	s, ok := p.(Schema)
	if !ok {
		return nil
	}
	for _, m := range models {
		if err := s.CreateTable(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// insert writes row through the query layer. Read-only models are seeded
// through a writable copy.
func insert(ctx context.Context, p query.Persistence, m *model.Model, row ir.Row) error {
	if m.ReadOnly {
		m = m.Clone()
		m.ReadOnly = false
	}
	q, err := query.New(p, m)
	if err != nil {
		return err
	}
	if err := q.Insert(row); err != nil {
		return err
	}
	_, err = q.Execute(ctx)
	return err
}
