// Package model describes persisted entities: table, ordered field list,
// identity field, base scope, order and limit, and the loaded identity.
//
// A Model is the descriptor the query core consumes. It resolves field
// names (failing UNKNOWN_FIELD at attachment time), dispatches hooks and
// validates row data against a JSON schema compiled from its fields.
package model

import (
	"fmt"
	"slices"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/scope"
)

// FieldType is a declared field type.
type FieldType string

const (
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
)

// ParseFieldType validates a type name. Empty means string.
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(s) {
	case "":
		return TypeString, nil
	case TypeInteger, TypeFloat, TypeString, TypeBoolean:
		return FieldType(s), nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// Kind returns the value kind stored in fields of type t.
func (t FieldType) Kind() ir.Kind {
	switch t {
	case TypeInteger:
		return ir.KindInt
	case TypeFloat:
		return ir.KindFloat
	case TypeBoolean:
		return ir.KindBool
	default:
		return ir.KindText
	}
}

// Field is a field descriptor.
type Field struct {
	Name      string
	Type      FieldType
	Mandatory bool
}

// DefaultIDField is the identity field used unless configured otherwise.
const DefaultIDField = "id"

// Model is a persisted entity descriptor.
type Model struct {
	// Name identifies the model in diagnostics. Defaults to Table.
	Name string
	// Table is the storage table name.
	Table string
	// IDField names the identity field. Empty means the model has none.
	IDField string
	// ReadOnly models reject every write.
	ReadOnly bool

	fields []Field
	index  map[string]int

	scope  *scope.Scope
	order  []OrderKey
	limit  Limit
	loaded ir.Value

	hooks    *Hooks
	compiled *schemaSet
}

// Option configures a Model.
type Option func(*Model)

// WithIDField sets the identity field name.
func WithIDField(name string) Option {
	return func(m *Model) {
		m.IDField = name
	}
}

// WithoutID configures a model with no identity field.
func WithoutID() Option {
	return func(m *Model) {
		m.IDField = ""
	}
}

// WithReadOnly makes the model reject writes.
func WithReadOnly() Option {
	return func(m *Model) {
		m.ReadOnly = true
	}
}

// WithName sets the diagnostic name.
func WithName(name string) Option {
	return func(m *Model) {
		m.Name = name
	}
}

// New creates a model over table with fields in declaration order.
// When the identity field is not declared it is prepended as an integer
// field.
func New(table string, fields []Field, opts ...Option) (*Model, error) {
	if table == "" {
		return nil, fmt.Errorf("model table must not be empty")
	}
	m := &Model{
		Name:     table,
		Table:    table,
		IDField:  DefaultIDField,
		index:    make(map[string]int),
		scope:    scope.Empty(),
		hooks:    NewHooks(),
		compiled: &schemaSet{},
	}
	for _, opt := range opts {
		opt(m)
	}

	declared := slices.Clone(fields)
	if m.IDField != "" && !slices.ContainsFunc(declared, func(f Field) bool { return f.Name == m.IDField }) {
		declared = append([]Field{{Name: m.IDField, Type: TypeInteger}}, declared...)
	}
	for _, f := range declared {
		if f.Name == "" {
			return nil, fmt.Errorf("model %s: field name must not be empty", m.Name)
		}
		if _, dup := m.index[f.Name]; dup {
			return nil, fmt.Errorf("model %s: duplicate field %q", m.Name, f.Name)
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		if _, err := ParseFieldType(string(f.Type)); err != nil {
			return nil, fmt.Errorf("model %s: field %q: %w", m.Name, f.Name, err)
		}
		m.index[f.Name] = len(m.fields)
		m.fields = append(m.fields, f)
	}
	return m, nil
}

// MustNew is New for tests and static definitions. Panics on error.
func MustNew(table string, fields []Field, opts ...Option) *Model {
	m, err := New(table, fields, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Fields returns the declared fields in order.
func (m *Model) Fields() []Field {
	return slices.Clone(m.fields)
}

// FieldNames returns declared field names in order.
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Name
	}
	return names
}

// Field resolves a field by name.
func (m *Model) Field(name string) (Field, error) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, NewUnknownFieldError(m.Name, name)
	}
	return m.fields[i], nil
}

// ResolveField implements scope.Resolver.
func (m *Model) ResolveField(name string) (ir.Kind, error) {
	f, err := m.Field(name)
	if err != nil {
		return ir.KindNull, err
	}
	return f.Type.Kind(), nil
}

// HasIDField reports whether the model has an identity field.
func (m *Model) HasIDField() bool {
	return m.IDField != ""
}

// IDType returns the identity field type.
func (m *Model) IDType() (FieldType, bool) {
	if !m.HasIDField() {
		return "", false
	}
	f, err := m.Field(m.IDField)
	if err != nil {
		return "", false
	}
	return f.Type, true
}

// Scope returns a copy of the model's base scope.
func (m *Model) Scope() *scope.Scope {
	return m.scope.Clone()
}

// AddCondition narrows the base scope. Fields are resolved immediately.
func (m *Model) AddCondition(operand string, args ...any) error {
	c, err := scope.NewCondition(operand, args...)
	if err != nil {
		return err
	}
	return m.AddScope(c)
}

// AddScope narrows the base scope by n after binding it to the model.
func (m *Model) AddScope(n scope.Node) error {
	bound, err := scope.Bind(n, m)
	if err != nil {
		return err
	}
	m.scope.And(bound)
	return nil
}

// AddOrder appends an ordering key after resolving the field.
func (m *Model) AddOrder(field string, desc bool) error {
	if _, err := m.Field(field); err != nil {
		return err
	}
	key := OrderKey{Field: field, Direction: Asc}
	if desc {
		key.Direction = Desc
	}
	m.order = append(m.order, key)
	return nil
}

// Order returns the ordering keys.
func (m *Model) Order() []OrderKey {
	return slices.Clone(m.order)
}

// SetLimit replaces the limit.
func (m *Model) SetLimit(count, offset int) error {
	l, err := NewLimit(count, offset)
	if err != nil {
		return err
	}
	m.limit = l
	return nil
}

// Limit returns the current limit.
func (m *Model) Limit() Limit {
	return m.limit
}

// SetLoaded binds the model to a loaded identity.
func (m *Model) SetLoaded(id ir.Value) {
	m.loaded = id
}

// Unload clears the loaded identity.
func (m *Model) Unload() {
	m.loaded = nil
}

// Loaded reports whether a record identity is bound.
func (m *Model) Loaded() bool {
	return m.loaded != nil && !ir.IsNull(m.loaded)
}

// ID returns the loaded identity, or Null.
func (m *Model) ID() ir.Value {
	if !m.Loaded() {
		return ir.Null{}
	}
	return m.loaded
}

// Hooks returns the model's hook registry. Clones share it.
func (m *Model) Hooks() *Hooks {
	return m.hooks
}

// Clone returns a snapshot: scope, order and limit are copied, hooks and
// compiled schemas are shared.
func (m *Model) Clone() *Model {
	cp := *m
	cp.scope = m.scope.Clone()
	cp.order = slices.Clone(m.order)
	cp.loaded = ir.CloneValue(m.loaded)
	return &cp
}

// String returns the diagnostic name.
func (m *Model) String() string {
	return m.Name
}
