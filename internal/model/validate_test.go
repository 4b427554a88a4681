package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeq/internal/ir"
)

func TestValidateInsert(t *testing.T) {
	m := invoiceModel(t)

	require.NoError(t, m.ValidateInsert(ir.Row{
		"name":   ir.Text("a"),
		"amount": ir.Float(1.5),
		"qty":    ir.Int(2),
		"paid":   ir.Bool(false),
	}))
	require.NoError(t, m.ValidateInsert(ir.Row{"name": ir.Text("a"), "amount": ir.Null{}}), "optional fields accept null")
	require.NoError(t, m.ValidateInsert(ir.Row{"name": ir.Text("a"), "amount": ir.Int(3)}), "integers are numbers")
}

func TestValidateInsertRejects(t *testing.T) {
	m := invoiceModel(t)

	tests := []struct {
		name string
		row  ir.Row
	}{
		{"missing mandatory", ir.Row{"qty": ir.Int(1)}},
		{"null mandatory", ir.Row{"name": ir.Null{}}},
		{"wrong type", ir.Row{"name": ir.Text("a"), "qty": ir.Text("two")}},
		{"fractional integer", ir.Row{"name": ir.Text("a"), "qty": ir.Float(1.5)}},
		{"bool as string", ir.Row{"name": ir.Text("a"), "paid": ir.Text("yes")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateInsert(tt.row)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestValidateUnknownField(t *testing.T) {
	m := invoiceModel(t)

	err := m.ValidateInsert(ir.Row{"name": ir.Text("a"), "color": ir.Text("red")})
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
}

func TestValidateUpdateIsPartial(t *testing.T) {
	m := invoiceModel(t)

	require.NoError(t, m.ValidateUpdate(ir.Row{"qty": ir.Int(4)}))

	err := m.ValidateUpdate(ir.Row{"name": ir.Null{}})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestValidateSharedAcrossClones(t *testing.T) {
	m := invoiceModel(t)
	cp := m.Clone()

	require.Error(t, cp.ValidateInsert(ir.Row{}))
	require.Error(t, m.ValidateInsert(ir.Row{}))
	assert.Same(t, m.compiled, cp.compiled)
}
