package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeq/internal/ir"
)

func testRootOptions(format, backend string) *RootOptions {
	return &RootOptions{
		Format:  format,
		Backend: backend,
		Models:  "testdata/models",
		Fixture: "testdata/invoices.yaml",
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestQuerySelectOrdered(t *testing.T) {
	for _, backend := range []string{"array", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cmd := NewQueryCommand(testRootOptions("text", backend))
			out, _, err := execute(t, cmd, "invoice", "--select", "name", "--order", "amount:desc")
			require.NoError(t, err)
			assert.Equal(t, "name\ngamma\nalpha\nbeta\ndelta\n(4 row(s))\n", out)
		})
	}
}

func TestQueryCountJSON(t *testing.T) {
	for _, backend := range []string{"array", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cmd := NewQueryCommand(testRootOptions("json", backend))
			out, _, err := execute(t, cmd, "invoice", "--where", "[paid, true]", "--count")
			require.NoError(t, err)

			var resp struct {
				Status string      `json:"status"`
				Data   QueryResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, "invoice", resp.Data.Model)
			assert.Equal(t, "count", resp.Data.Action)
			assert.JSONEq(t, "2", string(resp.Data.Value))
		})
	}
}

func TestQueryNegatedOr(t *testing.T) {
	// not (amount > 15 or paid = false) is amount <= 15 and paid != false.
	cmd := NewQueryCommand(testRootOptions("text", "sqlite"))
	out, _, err := execute(t, cmd, "invoice",
		"--where", `[amount, ">", 15]`, "--where", "[paid, false]",
		"--junction", "or", "--negate", "--select", "name")
	require.NoError(t, err)
	assert.Equal(t, "name\nalpha\n(1 row(s))\n", out)
}

func TestQueryModelBaseScope(t *testing.T) {
	for _, backend := range []string{"array", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cmd := NewQueryCommand(testRootOptions("text", backend))
			out, _, err := execute(t, cmd, "paid_invoice", "--select", "name,amount")
			require.NoError(t, err)
			assert.Equal(t, "name   amount\ngamma  20\nalpha  10.5\n(2 row(s))\n", out)
		})
	}
}

func TestQueryAggregate(t *testing.T) {
	cmd := NewQueryCommand(testRootOptions("text", "array"))
	out, _, err := execute(t, cmd, "invoice", "--aggregate", "sum:amount")
	require.NoError(t, err)
	assert.Equal(t, "30.5\n", out)

	cmd = NewQueryCommand(testRootOptions("text", "array"))
	out, _, err = execute(t, cmd, "invoice", "--where", "[amount, null]", "--aggregate", "max:amount")
	require.NoError(t, err)
	assert.Equal(t, "NULL\n", out)
}

func TestQueryGroup(t *testing.T) {
	for _, backend := range []string{"array", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cmd := NewQueryCommand(testRootOptions("json", backend))
			out, _, err := execute(t, cmd, "invoice",
				"--group", "paid", "--column", "n=count", "--column", "total=sum:amount")
			require.NoError(t, err)

			var resp struct {
				Status string      `json:"status"`
				Data   QueryResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "group", resp.Data.Action)
			assert.Equal(t, []ir.Row{
				{"paid": ir.Bool(false), "n": ir.Int(2), "total": ir.Null{}},
				{"paid": ir.Bool(true), "n": ir.Int(2), "total": ir.Float(30.5)},
			}, resp.Data.Rows)
		})
	}
}

func TestQueryGroupText(t *testing.T) {
	cmd := NewQueryCommand(testRootOptions("text", "array"))
	out, _, err := execute(t, cmd, "invoice", "--where", "[paid, true]", "--group", "paid", "--column", "max:amount")
	require.NoError(t, err)
	assert.Equal(t, "paid  max\n1     20\n(1 row(s))\n", out)
}

func TestQueryFind(t *testing.T) {
	cmd := NewQueryCommand(testRootOptions("json", "sqlite"))
	out, _, err := execute(t, cmd, "invoice", "--find", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"gamma"`)

	cmd = NewQueryCommand(testRootOptions("text", "sqlite"))
	out, _, err = execute(t, cmd, "invoice", "--find", "99")
	require.NoError(t, err)
	assert.Equal(t, "id  name  amount  paid\n(0 row(s))\n", out)
}

func TestQueryUnknownField(t *testing.T) {
	cmd := NewQueryCommand(testRootOptions("json", "array"))
	out, _, err := execute(t, cmd, "invoice", "--where", "[nope, 1]")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "UNKNOWN_FIELD", resp.Error.Code)
}

func TestQueryInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"two actions", []string{"invoice", "--count", "--exists"}, "at most one action"},
		{"aggregate shape", []string{"invoice", "--aggregate", "sum"}, "expected fn:field"},
		{"order direction", []string{"invoice", "--order", "amount:sideways"}, "asc or desc"},
		{"where yaml", []string{"invoice", "--where", "[amount"}, "--where[0]"},
		{"column without group", []string{"invoice", "--column", "count"}, "--column requires --group"},
		{"group and count", []string{"invoice", "--group", "paid", "--count"}, "at most one action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewQueryCommand(testRootOptions("text", "array"))
			_, errOut, err := execute(t, cmd, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), ErrCodeInvalidQuery)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestQueryUnknownModel(t *testing.T) {
	cmd := NewQueryCommand(testRootOptions("text", "array"))
	_, errOut, err := execute(t, cmd, "order")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, `unknown model "order"`)
}
