package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModels(t *testing.T) {
	result, err := LoadModels(filepath.Join("testdata", "models"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Models, 2)
	assert.Equal(t, "invoice", result.Models[0].Name)
	assert.Equal(t, "paid_invoice", result.Models[1].Name)
	assert.Equal(t, "invoice", result.Models[1].Table)

	m, err := result.Model("paid_invoice")
	require.NoError(t, err)
	assert.False(t, m.Scope().IsEmpty())

	// Table names resolve when no model label matches.
	m, err = result.Model("invoice")
	require.NoError(t, err)
	assert.Equal(t, "invoice", m.Name)

	_, err = result.Model("order")
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeUnknownModel, loadErr.Code)
}

func TestLoadModelsErrors(t *testing.T) {
	writeCUE := func(t *testing.T, src string) string {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "models.cue"), []byte(src), 0644))
		return dir
	}

	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{"missing", func(*testing.T) string { return "/nonexistent/models" }, ErrCodeNotFound},
		{"empty", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles},
		{"syntax", func(t *testing.T) string { return writeCUE(t, "package models\nmodel: {") }, ErrCodeLoadFailed},
		{"no models", func(t *testing.T) string { return writeCUE(t, "package models\nother: 1\n") }, ErrCodeGeneric},
		{"bad type", func(t *testing.T) string {
			return writeCUE(t, "package models\nmodel: x: fields: a: {type: \"decimal\"}\n")
		}, ErrCodeInvalidType},
		{"bad order", func(t *testing.T) string {
			return writeCUE(t, "package models\nmodel: x: {fields: a: {type: \"string\"}, order: [{field: \"b\"}]}\n")
		}, ErrCodeModelOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModels(tt.dir(t))
			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, tt.code, loadErr.Code, loadErr.Message)
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeModelTable, MapFieldToErrorCode("table"))
	assert.Equal(t, ErrCodeModelFields, MapFieldToErrorCode("fields"))
	assert.Equal(t, ErrCodeModelConditions, MapFieldToErrorCode("conditions"))
	assert.Equal(t, ErrCodeModelLimit, MapFieldToErrorCode("limit"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("unknown"))
}
