package model

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/scopeq/internal/ir"
)

// schemaSet holds compiled row schemas. Field lists are immutable after
// construction, so clones share one set.
type schemaSet struct {
	once   sync.Once
	insert *gojsonschema.Schema
	update *gojsonschema.Schema
	err    error
}

func (m *Model) schemas() (*schemaSet, error) {
	s := m.compiled
	s.once.Do(func() {
		s.insert, s.err = compileSchema(m, true)
		if s.err != nil {
			return
		}
		s.update, s.err = compileSchema(m, false)
	})
	return s, s.err
}

func jsonType(t FieldType) string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// compileSchema builds a JSON schema over the declared fields. Mandatory
// fields reject null; on insert they must also be present. The id field is
// never required because storage assigns it.
func compileSchema(m *Model, insert bool) (*gojsonschema.Schema, error) {
	props := make(map[string]any, len(m.fields))
	required := []string{}
	for _, f := range m.fields {
		var typ any = []string{jsonType(f.Type), "null"}
		if f.Mandatory {
			typ = jsonType(f.Type)
			if insert && f.Name != m.IDField {
				required = append(required, f.Name)
			}
		}
		props[f.Name] = map[string]any{"type": typ}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", m.Table, err)
	}
	return schema, nil
}

// ValidateInsert checks a row about to be inserted.
func (m *Model) ValidateInsert(row ir.Row) error {
	return m.validate(row, true)
}

// ValidateUpdate checks a partial row about to be merged.
func (m *Model) ValidateUpdate(row ir.Row) error {
	return m.validate(row, false)
}

func (m *Model) validate(row ir.Row, insert bool) error {
	for _, name := range row.SortedKeys() {
		if _, err := m.Field(name); err != nil {
			return err
		}
	}

	set, err := m.schemas()
	if err != nil {
		return err
	}
	schema := set.update
	if insert {
		schema = set.insert
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(row.ToGo()))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return &ValidationError{Code: ErrCodeValidation, Model: m.Table, Issues: issues}
}

// Normalize returns a copy of row with every value coerced to the kind of
// its declared field, so an integer written to a float field is stored as
// a float by every backend.
func (m *Model) Normalize(row ir.Row) ir.Row {
	out := make(ir.Row, len(row))
	for name, v := range row {
		if f, err := m.Field(name); err == nil {
			v = ir.Coerce(v, f.Type.Kind())
		}
		out[name] = ir.CloneValue(v)
	}
	return out
}
