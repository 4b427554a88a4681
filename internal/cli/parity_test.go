package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "parity", "testdata", "scenarios")

func TestParityAllScenariosPass(t *testing.T) {
	cmd := NewParityCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 null_ordering")
	assert.Contains(t, out, "Parity Summary ([array sqlite]): 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestParityFilterJSON(t *testing.T) {
	cmd := NewParityCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, scenariosDir, "--filter", "null_*", "--backends", "sqlite,array")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ParityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"sqlite", "array"}, resp.Data.Backends)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "null_ordering", resp.Data.Scenarios[0].Name)
	assert.Equal(t, 1, resp.Data.Total)
}

func TestParityGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(scenariosDir, "null_ordering.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "null_ordering.yaml"), src, 0644))

	cmd := NewParityCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "null_ordering (golden updated)")

	// The CLI writes the same snapshot the package golden test pins.
	written, err := os.ReadFile(filepath.Join(dir, "golden", "null_ordering.golden"))
	require.NoError(t, err)
	pinned, err := os.ReadFile(filepath.Join("..", "parity", "testdata", "golden", "null_ordering.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(pinned), string(written))

	cmd = NewParityCommand(&RootOptions{Format: "text"})
	_, _, err = execute(t, cmd, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "null_ordering.golden"), []byte("{}"), 0644))
	cmd = NewParityCommand(&RootOptions{Format: "text"})
	out, _, err = execute(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 null_ordering")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestParityReportsFailedExpectations(t *testing.T) {
	dir := t.TempDir()
	doc := `name: wrong
description: expects a count the fixture cannot produce
models: |
  model: invoice: fields: name: {type: "string"}
fixture:
  tables:
    - model: invoice
      rows: [{name: a}]
steps:
  - model: invoice
    count: true
    expect: {value: 2}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(doc), 0644))

	cmd := NewParityCommand(&RootOptions{Format: "json"})
	out, _, err := execute(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ParityResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_PARITY_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, []string{"steps[0]: expected value int(2), got int(1)"}, resp.Data.Scenarios[0].Errors)
}

func TestParityCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing dir", []string{"/nonexistent/scenarios"}, "scenarios directory not found"},
		{"bad filter", []string{scenariosDir, "--filter", "["}, "invalid filter pattern"},
		{"postgres without dsn", []string{scenariosDir, "--backends", "array,postgres"}, "requires a database DSN"},
		{"unknown backend", []string{scenariosDir, "--backends", "oracle"}, "unknown backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewParityCommand(&RootOptions{Format: "text"})
			_, errOut, err := execute(t, cmd, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestParityEmptyDirectory(t *testing.T) {
	cmd := NewParityCommand(&RootOptions{Format: "text"})
	out, _, err := execute(t, cmd, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
