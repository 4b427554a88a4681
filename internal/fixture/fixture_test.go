package fixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeq/internal/arraydb"
	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/sqldb"
	"github.com/roach88/scopeq/internal/store"
)

func testModels(t *testing.T) []*model.Model {
	t.Helper()
	invoice, err := model.New("invoices", []model.Field{
		{Name: "name", Type: model.TypeString, Mandatory: true},
		{Name: "amount", Type: model.TypeFloat},
		{Name: "qty", Type: model.TypeInteger},
		{Name: "paid", Type: model.TypeBoolean},
	}, model.WithName("invoice"))
	require.NoError(t, err)

	currency, err := model.New("currency", []model.Field{
		{Name: "code", Type: model.TypeString, Mandatory: true},
	}, model.WithReadOnly())
	require.NoError(t, err)

	return []*model.Model{invoice, currency}
}

func allRows(t *testing.T, p query.Persistence, m *model.Model) []ir.Row {
	t.Helper()
	q, err := query.New(p, m)
	require.NoError(t, err)
	rows, err := q.Get(context.Background())
	require.NoError(t, err)
	return rows
}

func TestLoad(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "invoices.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Tables, 2)
	assert.Equal(t, "invoice", f.Tables[0].Model)
	assert.Equal(t, 5, f.Rows())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("tables:\n  - model: invoice\n    row: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("table: []\n"))
	assert.Error(t, err)
}

func TestParseRequiresModel(t *testing.T) {
	_, err := Parse([]byte("tables:\n  - rows: [{name: x}]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")
}

func TestLookup(t *testing.T) {
	models := testModels(t)

	m, ok := Lookup(models, "invoice")
	require.True(t, ok)
	assert.Equal(t, "invoices", m.Table)

	m, ok = Lookup(models, "invoices")
	require.True(t, ok)
	assert.Equal(t, "invoice", m.Name)

	_, ok = Lookup(models, "order")
	assert.False(t, ok)
}

func TestApplyArray(t *testing.T) {
	ctx := context.Background()
	models := testModels(t)
	f, err := Load(filepath.Join("testdata", "invoices.yaml"))
	require.NoError(t, err)

	p := arraydb.New(arraydb.NewStorage())
	require.NoError(t, f.Apply(ctx, p, models))

	rows := allRows(t, p, models[0])
	require.Len(t, rows, 3)
	assert.Equal(t, ir.Int(1), rows[0].Get("id"))
	assert.Equal(t, ir.Float(10.5), rows[0].Get("amount"))
	assert.Equal(t, ir.Null{}, rows[1].Get("amount"))
	// Integers in float fields are normalized on insert.
	assert.Equal(t, ir.Float(20), rows[2].Get("amount"))
	assert.Equal(t, ir.Null{}, rows[2].Get("paid"))

	assert.Len(t, allRows(t, p, models[1]), 2)
}

func TestApplySQL(t *testing.T) {
	ctx := context.Background()
	models := testModels(t)
	f, err := Load(filepath.Join("testdata", "invoices.yaml"))
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p := sqldb.New(s)
	require.NoError(t, f.Apply(ctx, p, models))

	rows := allRows(t, p, models[0])
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, []string{
		rows[0].Get("name").String(), rows[1].Get("name").String(), rows[2].Get("name").String(),
	})
	assert.Equal(t, ir.Float(20), rows[2].Get("amount"))
	assert.Equal(t, ir.Bool(true), rows[0].Get("paid"))

	assert.Len(t, allRows(t, p, models[1]), 2)
}

func TestApplyNilFixtureCreatesTables(t *testing.T) {
	ctx := context.Background()
	models := testModels(t)

	s, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p := sqldb.New(s)
	var f *Fixture
	require.NoError(t, f.Apply(ctx, p, models))
	assert.Empty(t, allRows(t, p, models[0]))
}

func TestApplyUnknownModel(t *testing.T) {
	f, err := Parse([]byte("tables:\n  - model: order\n    rows: [{name: x}]\n"))
	require.NoError(t, err)

	err = f.Apply(context.Background(), arraydb.New(arraydb.NewStorage()), testModels(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown model "order"`)
}

func TestApplyInvalidRow(t *testing.T) {
	f, err := Parse([]byte("tables:\n  - model: invoice\n    rows: [{qty: 1}]\n"))
	require.NoError(t, err)

	err = f.Apply(context.Background(), arraydb.New(arraydb.NewStorage()), testModels(t))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
