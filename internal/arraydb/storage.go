package arraydb

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
)

// Record is a stored row with the identity it is keyed by.
type Record struct {
	ID  ir.Value
	Row ir.Row
}

type table struct {
	keys []any // insertion order of ir.Key(id)
	rows map[any]Record
}

func newTable() *table {
	return &table{rows: make(map[any]Record)}
}

// Storage holds tables of insertion-ordered rows keyed by identity.
//
// Storage does no locking. Callers sharing one Storage across goroutines
// must serialize access.
type Storage struct {
	tables  map[string]*table
	lastIDs map[string]ir.Value
	lastAny ir.Value
}

// NewStorage creates empty storage.
func NewStorage() *Storage {
	return &Storage{
		tables:  make(map[string]*table),
		lastIDs: make(map[string]ir.Value),
		lastAny: ir.Null{},
	}
}

func (s *Storage) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = newTable()
		s.tables[name] = t
	}
	return t
}

// Tables returns table names in sorted order.
func (s *Storage) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Records returns copies of the rows of a table in insertion order.
func (s *Storage) Records(name string) []Record {
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(t.keys))
	for _, k := range t.keys {
		rec := t.rows[k]
		out = append(out, Record{ID: rec.ID, Row: rec.Row.Clone()})
	}
	return out
}

// Get returns the row stored under id.
func (s *Storage) Get(name string, id ir.Value) (ir.Row, bool) {
	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	rec, ok := t.rows[ir.Key(id)]
	if !ok {
		return nil, false
	}
	return rec.Row.Clone(), true
}

// Insert stores row for m and returns its identity.
//
// When m has an identity field and row carries a non-null identity, that
// identity is kept; otherwise a new one is generated: max integer key + 1
// for integer ids, a UUIDv7 for string ids. Models without an identity
// field are keyed by row count + 1.
func (s *Storage) Insert(m *model.Model, row ir.Row) (ir.Value, error) {
	t := s.table(m.Table)
	data := row.Clone()
	if data == nil {
		data = ir.Row{}
	}

	var id ir.Value
	if m.HasIDField() && !ir.IsNull(data.Get(m.IDField)) {
		id = data.Get(m.IDField)
		if _, dup := t.rows[ir.Key(id)]; dup {
			return nil, &DuplicateIDError{Table: m.Table, ID: id}
		}
	} else {
		generated, err := s.generateID(m, t)
		if err != nil {
			return nil, err
		}
		id = generated
		if m.HasIDField() {
			data[m.IDField] = id
		}
	}

	key := ir.Key(id)
	t.keys = append(t.keys, key)
	t.rows[key] = Record{ID: id, Row: data}

	s.lastIDs[m.Table] = id
	s.lastAny = id
	return id, nil
}

func (s *Storage) generateID(m *model.Model, t *table) (ir.Value, error) {
	if !m.HasIDField() {
		n := int64(len(t.keys)) + 1
		for {
			if _, taken := t.rows[ir.Key(ir.Int(n))]; !taken {
				return ir.Int(n), nil
			}
			n++
		}
	}
	typ, _ := m.IDType()
	switch typ {
	case model.TypeInteger:
		var maxID int64
		for _, rec := range t.rows {
			if n, ok := rec.ID.(ir.Int); ok && int64(n) > maxID {
				maxID = int64(n)
			}
		}
		return ir.Int(maxID + 1), nil
	case model.TypeString:
		u, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate id for %s: %w", m.Table, err)
		}
		return ir.Text(u.String()), nil
	default:
		return nil, fmt.Errorf("unsupported id field type %q for table %s: integer or string only", typ, m.Table)
	}
}

// Update merges patch into the row stored under id. Fields absent from
// patch keep their values. It reports whether a row was found.
func (s *Storage) Update(name string, id ir.Value, patch ir.Row) bool {
	t, ok := s.tables[name]
	if !ok {
		return false
	}
	key := ir.Key(id)
	rec, ok := t.rows[key]
	if !ok {
		return false
	}
	rec.Row = rec.Row.Merge(patch)
	t.rows[key] = rec
	return true
}

// Delete removes the rows stored under ids and returns how many were
// removed. The insertion order is compacted once per call.
func (s *Storage) Delete(name string, ids ...ir.Value) int {
	t, ok := s.tables[name]
	if !ok {
		return 0
	}
	removed := make(map[any]struct{}, len(ids))
	for _, id := range ids {
		key := ir.Key(id)
		if _, ok := t.rows[key]; !ok {
			continue
		}
		delete(t.rows, key)
		removed[key] = struct{}{}
	}
	if len(removed) == 0 {
		return 0
	}
	t.keys = slices.DeleteFunc(t.keys, func(k any) bool {
		_, gone := removed[k]
		return gone
	})
	return len(removed)
}

// LastInsertID returns the last identity inserted into table, or Null.
func (s *Storage) LastInsertID(name string) ir.Value {
	if id, ok := s.lastIDs[name]; ok {
		return id
	}
	return ir.Null{}
}

// LastInsertIDAny returns the last identity inserted into any table.
func (s *Storage) LastInsertIDAny() ir.Value {
	return s.lastAny
}

// DuplicateIDError reports an insert with an identity already in use.
type DuplicateIDError struct {
	Table string
	ID    ir.Value
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("table %s already holds a row with id %s", e.Table, e.ID)
}
