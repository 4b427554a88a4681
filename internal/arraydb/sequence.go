package arraydb

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/scope"
)

// Sequence is a lazily evaluated, ordered sequence of records.
//
// Every transformation returns a new Sequence; the source slice is never
// modified. Filter and Project stay lazy; Order and Limit materialize.
// An evaluation failure stops the sequence and is reported by the
// consuming call.
type Sequence struct {
	seq iter.Seq[Record]
	err *error
}

// NewSequence wraps records in insertion order.
func NewSequence(records []Record) *Sequence {
	var err error
	return &Sequence{seq: slices.Values(records), err: &err}
}

func (s *Sequence) derive(seq iter.Seq[Record]) *Sequence {
	return &Sequence{seq: seq, err: s.err}
}

func (s *Sequence) fail(err error) {
	if *s.err == nil {
		*s.err = err
	}
}

// Filter keeps records whose row satisfies n, preserving order.
func (s *Sequence) Filter(n scope.Node, m scope.Matcher) *Sequence {
	if n == nil || n.IsEmpty() {
		return s
	}
	return s.derive(func(yield func(Record) bool) {
		for rec := range s.seq {
			ok, err := m.Match(n, rec.Row)
			if err != nil {
				s.fail(err)
				return
			}
			if ok && !yield(rec) {
				return
			}
		}
	})
}

// Order sorts by keys in one stable pass. Later keys break ties of
// earlier ones; ties on every key keep their relative order.
func (s *Sequence) Order(keys []model.OrderKey) *Sequence {
	if len(keys) == 0 {
		return s
	}
	return s.derive(func(yield func(Record) bool) {
		recs := slices.Collect(s.seq)
		slices.SortStableFunc(recs, func(a, b Record) int {
			for _, k := range keys {
				c := ir.Compare(a.Row.Get(k.Field), b.Row.Get(k.Field))
				if k.IsDesc() {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
		for _, rec := range recs {
			if !yield(rec) {
				return
			}
		}
	})
}

// Limit slices the sequence. An offset beyond the end yields nothing.
func (s *Sequence) Limit(l model.Limit) *Sequence {
	count, offset, restricted, capped := l.Args()
	if !restricted {
		return s
	}
	return s.derive(func(yield func(Record) bool) {
		i, taken := 0, 0
		for rec := range s.seq {
			if i++; i <= offset {
				continue
			}
			if capped && taken >= count {
				return
			}
			taken++
			if !yield(rec) {
				return
			}
		}
	})
}

// Group collapses the sequence into one record per distinct combination
// of fields, in order of first appearance. Each group row holds the
// group fields followed by columns computed over the group's records.
func (s *Sequence) Group(fields []string, columns []query.GroupColumn) *Sequence {
	return s.derive(func(yield func(Record) bool) {
		var (
			order   []any
			members = make(map[any][]Record)
		)
		for rec := range s.seq {
			key := make(ir.Seq, len(fields))
			for i, f := range fields {
				key[i] = rec.Row.Get(f)
			}
			k := ir.Key(key)
			if _, ok := members[k]; !ok {
				order = append(order, k)
			}
			members[k] = append(members[k], rec)
		}
		if *s.err != nil {
			return
		}

		for _, k := range order {
			recs := members[k]
			row := make(ir.Row, len(fields)+len(columns))
			for _, f := range fields {
				row[f] = recs[0].Row.Get(f)
			}
			for _, gc := range columns {
				if gc.Aggregate.Func == query.CountRows {
					row[gc.Alias] = ir.Int(int64(len(recs)))
					continue
				}
				v, err := NewSequence(recs).Aggregate(gc.Aggregate)
				if err != nil {
					s.fail(err)
					return
				}
				row[gc.Alias] = v
			}
			if !yield(Record{ID: ir.Null{}, Row: row}) {
				return
			}
		}
	})
}

// Project keeps only fields, renaming them by alias when given. Absent
// fields project as null.
func (s *Sequence) Project(fields []string, alias map[string]string) *Sequence {
	return s.derive(func(yield func(Record) bool) {
		for rec := range s.seq {
			row := make(ir.Row, len(fields))
			for _, f := range fields {
				name := f
				if a, ok := alias[f]; ok {
					name = a
				}
				row[name] = rec.Row.Get(f)
			}
			if !yield(Record{ID: rec.ID, Row: row}) {
				return
			}
		}
	})
}

// Records materializes the sequence.
func (s *Sequence) Records() ([]Record, error) {
	recs := slices.Collect(s.seq)
	if *s.err != nil {
		return nil, *s.err
	}
	return recs, nil
}

// Rows materializes the sequence rows.
func (s *Sequence) Rows() ([]ir.Row, error) {
	recs, err := s.Records()
	if err != nil {
		return nil, err
	}
	rows := make([]ir.Row, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Row
	}
	return rows, nil
}

// Count returns the number of records at this point of the pipeline.
func (s *Sequence) Count() (int, error) {
	n := 0
	for range s.seq {
		n++
	}
	if *s.err != nil {
		return 0, *s.err
	}
	return n, nil
}

// Exists reports whether the sequence yields at least one record. Only
// the first record is produced.
func (s *Sequence) Exists() (bool, error) {
	found := false
	s.seq(func(Record) bool {
		found = true
		return false
	})
	if *s.err != nil {
		return false, *s.err
	}
	return found, nil
}

// Aggregate applies agg over the sequence.
//
// Null values never contribute except to AVG with Coalesce, where they
// count as 0. SUM, MIN and MAX over no values, and AVG over no rows, are
// null; Coalesce turns a null result into 0. SUM stays integral while
// every value is an integer. Booleans count as 0 and 1.
func (s *Sequence) Aggregate(agg query.Aggregate) (ir.Value, error) {
	var (
		values   []ir.Value
		total    int
		allInts  = true
		intSum   int64
		floatSum float64
	)
	for rec := range s.seq {
		total++
		v := rec.Row.Get(agg.Field)
		if ir.IsNull(v) {
			continue
		}
		values = append(values, v)
		if agg.Func != query.Sum && agg.Func != query.Avg {
			continue
		}
		switch n := v.(type) {
		case ir.Int:
			intSum += int64(n)
			floatSum += float64(n)
		case ir.Bool:
			if n {
				intSum++
				floatSum++
			}
		case ir.Float:
			allInts = false
			floatSum += float64(n)
		default:
			s.fail(fmt.Errorf("%s(%s): value %q is not numeric", agg.Func, agg.Field, v.String()))
			return nil, *s.err
		}
	}
	if *s.err != nil {
		return nil, *s.err
	}

	var result ir.Value = ir.Null{}
	switch agg.Func {
	case query.Sum:
		if len(values) > 0 {
			if allInts {
				result = ir.Int(intSum)
			} else {
				result = ir.Float(floatSum)
			}
		}
	case query.Avg:
		denom := len(values)
		if agg.Coalesce {
			denom = total
		}
		if denom > 0 {
			result = ir.Float(floatSum / float64(denom))
		}
	case query.Min, query.Max:
		for _, v := range values {
			if ir.IsNull(result) {
				result = v
				continue
			}
			c := ir.Compare(v, result)
			if (agg.Func == query.Min && c < 0) || (agg.Func == query.Max && c > 0) {
				result = v
			}
		}
	default:
		return nil, query.NewUnsupportedAggregateError(string(agg.Func))
	}

	if agg.Coalesce && ir.IsNull(result) {
		return ir.Int(0), nil
	}
	return result, nil
}
