package parity

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scopeq/internal/compiler"
	"github.com/roach88/scopeq/internal/fixture"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
)

// Scenario is a sequence of queries run against every backend.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario pins down.
	Description string `yaml:"description"`

	// Models is CUE source holding a top-level "model" struct.
	Models string `yaml:"models"`

	// Fixture seeds every backend before the first step.
	Fixture *fixture.Fixture `yaml:"fixture,omitempty"`

	// Steps run in order; writes are visible to later steps.
	Steps []Step `yaml:"steps"`

	file string
}

// Step builds and runs one query. At most one action key (select, count,
// exists, aggregate, group, field, find, insert, update, delete) may be
// set; a step without one selects every declared field.
type Step struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`

	// Where holds scope shorthand items, joined by Junction ("and" when
	// empty). Negate applies De Morgan negation to the whole tree.
	Where    []any  `yaml:"where,omitempty"`
	Junction string `yaml:"junction,omitempty"`
	Negate   bool   `yaml:"negate,omitempty"`
	ID       any    `yaml:"id,omitempty"`

	Order []OrderStep `yaml:"order,omitempty"`
	Limit *LimitStep  `yaml:"limit,omitempty"`

	Select    []string       `yaml:"select,omitempty"`
	Count     bool           `yaml:"count,omitempty"`
	Exists    bool           `yaml:"exists,omitempty"`
	Aggregate *AggregateStep `yaml:"aggregate,omitempty"`
	Group     *GroupStep     `yaml:"group,omitempty"`
	Field     string         `yaml:"field,omitempty"`
	Find      any            `yaml:"find,omitempty"`
	Insert    map[string]any `yaml:"insert,omitempty"`
	Update    map[string]any `yaml:"update,omitempty"`
	Delete    bool           `yaml:"delete,omitempty"`

	// Expect is checked against the outcome every backend agreed on.
	Expect *Expect `yaml:"expect,omitempty"`
}

// OrderStep is one ordering key.
type OrderStep struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

// LimitStep maps to Query.Limit.
type LimitStep struct {
	Count  int `yaml:"count"`
	Offset int `yaml:"offset,omitempty"`
}

// AggregateStep maps to Query.Aggregate.
type AggregateStep struct {
	Func     string `yaml:"func"`
	Field    string `yaml:"field"`
	Coalesce bool   `yaml:"coalesce,omitempty"`
}

// GroupStep maps to Query.Group.
type GroupStep struct {
	Fields  []string          `yaml:"fields"`
	Columns []GroupColumnStep `yaml:"columns,omitempty"`
}

// GroupColumnStep is one computed column of a group step. Func is count
// or an aggregate function; count takes no field.
type GroupColumnStep struct {
	Alias    string `yaml:"alias,omitempty"`
	Func     string `yaml:"func"`
	Field    string `yaml:"field,omitempty"`
	Coalesce bool   `yaml:"coalesce,omitempty"`
}

// QueryColumns converts the step columns for Query.Group.
func (g *GroupStep) QueryColumns() []query.GroupColumn {
	cols := make([]query.GroupColumn, len(g.Columns))
	for i, c := range g.Columns {
		cols[i] = query.GroupColumn{
			Alias: c.Alias,
			Aggregate: query.Aggregate{
				Func:     query.AggregateFunc(c.Func),
				Field:    c.Field,
				Coalesce: c.Coalesce,
			},
		}
	}
	return cols
}

// Expect lists the parts of an outcome to check. Rows match as a subset:
// the row count must agree and every listed column must be equal.
type Expect struct {
	Rows     []map[string]any `yaml:"rows,omitempty"`
	Value    yaml.Node        `yaml:"value,omitempty"`
	InsertID yaml.Node        `yaml:"insert_id,omitempty"`
	Affected *int64           `yaml:"affected,omitempty"`
	Error    string           `yaml:"error,omitempty"`
}

// Action names the step's terminal operation.
func (s *Step) Action() string {
	switch {
	case s.Count:
		return "count"
	case s.Exists:
		return "exists"
	case s.Aggregate != nil:
		return "aggregate"
	case s.Group != nil:
		return "group"
	case s.Field != "":
		return "field"
	case s.Find != nil:
		return "find"
	case s.Insert != nil:
		return "insert"
	case s.Update != nil:
		return "update"
	case s.Delete:
		return "delete"
	default:
		return "select"
	}
}

func (s *Step) actions() int {
	n := 0
	for _, set := range []bool{
		len(s.Select) > 0, s.Count, s.Exists, s.Aggregate != nil, s.Group != nil, s.Field != "",
		s.Find != nil, s.Insert != nil, s.Update != nil, s.Delete,
	} {
		if set {
			n++
		}
	}
	return n
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.file = path
	return s, nil
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// CompileModels compiles the scenario's CUE models.
func (s *Scenario) CompileModels() ([]*model.Model, error) {
	name := s.file
	if name == "" {
		name = s.Name + ".cue"
	}
	models, err := compiler.CompileSource(name, s.Models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("scenario %s declares no models", s.Name)
	}
	return models, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Models) == "" {
		return fmt.Errorf("models is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := step.Validate(fmt.Sprintf("steps[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single step; label prefixes every message.
func (s *Step) Validate(label string) error {
	if s.Model == "" {
		return fmt.Errorf("%s: model is required", label)
	}
	if s.actions() > 1 {
		return fmt.Errorf("%s: at most one action may be set", label)
	}
	if s.Aggregate != nil && (s.Aggregate.Func == "" || s.Aggregate.Field == "") {
		return fmt.Errorf("%s.aggregate: func and field are required", label)
	}
	if s.Group != nil {
		for j, c := range s.Group.Columns {
			if c.Func == "" {
				return fmt.Errorf("%s.group.columns[%d]: func is required", label, j)
			}
		}
	}
	for j, o := range s.Order {
		if o.Field == "" {
			return fmt.Errorf("%s.order[%d]: field is required", label, j)
		}
	}
	return nil
}
