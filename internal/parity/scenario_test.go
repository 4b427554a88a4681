package parity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one model, one step
models: |
  model: invoice: fields: name: {type: "string"}
steps:
  - model: invoice
    count: true
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "count", s.Steps[0].Action())
	assert.Nil(t, s.Fixture)

	models, err := s.CompileModels()
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "invoice", models[0].Name)
}

func TestParseScenarioRejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "    limt: {count: 1}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "description: d\nmodels: x\nsteps: [{model: m}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: n\nmodels: x\nsteps: [{model: m}]\n",
			want: "description is required",
		},
		{
			name: "missing models",
			doc:  "name: n\ndescription: d\nsteps: [{model: m}]\n",
			want: "models is required",
		},
		{
			name: "no steps",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: []\n",
			want: "steps list is required",
		},
		{
			name: "step without model",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{count: true}]\n",
			want: "steps[0]: model is required",
		},
		{
			name: "two actions",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{model: m, count: true, exists: true}]\n",
			want: "at most one action",
		},
		{
			name: "aggregate without field",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{model: m, aggregate: {func: sum}}]\n",
			want: "func and field are required",
		},
		{
			name: "group column without func",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{model: m, group: {fields: [a], columns: [{alias: c}]}}]\n",
			want: "steps[0].group.columns[0]: func is required",
		},
		{
			name: "group and count",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{model: m, count: true, group: {fields: [a]}}]\n",
			want: "at most one action",
		},
		{
			name: "order without field",
			doc:  "name: n\ndescription: d\nmodels: x\nsteps: [{model: m, order: [{desc: true}]}]\n",
			want: "steps[0].order[0]: field is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStepAction(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{Step{}, "select"},
		{Step{Select: []string{"name"}}, "select"},
		{Step{Count: true}, "count"},
		{Step{Exists: true}, "exists"},
		{Step{Aggregate: &AggregateStep{Func: "sum", Field: "qty"}}, "aggregate"},
		{Step{Group: &GroupStep{Fields: []string{"client"}}}, "group"},
		{Step{Field: "name"}, "field"},
		{Step{Find: 1}, "find"},
		{Step{Insert: map[string]any{}}, "insert"},
		{Step{Update: map[string]any{"qty": 1}}, "update"},
		{Step{Delete: true}, "delete"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.Action())
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"composition", "grouping", "limits", "null_ordering", "writes"}, names)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestCompileModelsReportsCUEErrors(t *testing.T) {
	s := &Scenario{Name: "broken", Models: "model: invoice: {"}
	_, err := s.CompileModels()
	assert.Error(t, err)

	s.Models = "other: 1"
	_, err = s.CompileModels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares no models")
}
