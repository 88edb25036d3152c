// Package table defines the in-memory model for typed tabular datasets:
// named columns of equal length carrying physical units, element dtypes,
// per-row missing masks, and (for time columns) a temporal representation.
// The model is storage-agnostic; persistence lives in internal/storage.
package table

import (
	"fmt"
	"math"
)

// Table is an ordered collection of named columns, all of equal length.
type Table struct {
	names []string
	cols  map[string]*Column
}

// New returns an empty table.
func New() *Table {
	return &Table{cols: make(map[string]*Column)}
}

// AddColumn appends a named column. It fails if the name is already taken,
// the column is internally inconsistent, or its length differs from the
// table's existing row count.
func (t *Table) AddColumn(name string, c *Column) error {
	if name == "" {
		return fmt.Errorf("column name must not be empty")
	}
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("column %q already present", name)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	if len(t.names) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d", name, c.Len(), t.NumRows())
	}
	t.names = append(t.names, name)
	t.cols[name] = c
	return nil
}

// MustAddColumn is AddColumn panicking on error, for literals in tests and
// fixtures where the shape is known statically.
func (t *Table) MustAddColumn(name string, c *Column) *Table {
	if err := t.AddColumn(name, c); err != nil {
		panic(err)
	}
	return t
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	return t.cols[name]
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.names)
}

// NumRows returns the table's row count (0 for an empty table).
func (t *Table) NumRows() int {
	if len(t.names) == 0 {
		return 0
	}
	return t.cols[t.names[0]].Len()
}

// Clone returns a deep copy; mutating the copy never affects the original.
func (t *Table) Clone() *Table {
	out := New()
	for _, name := range t.names {
		out.names = append(out.names, name)
		out.cols[name] = t.cols[name].Clone()
	}
	return out
}

// Equal reports whether two tables have the same columns, in any order,
// with identical dtypes, units, masks and values. NaN floats compare equal
// so masked-as-NaN round trips can be asserted.
func (t *Table) Equal(o *Table) bool {
	if t.NumCols() != o.NumCols() {
		return false
	}
	for _, name := range t.names {
		a, b := t.cols[name], o.cols[name]
		if b == nil || !columnsEqual(a, b) {
			return false
		}
	}
	return true
}

func columnsEqual(a, b *Column) bool {
	if a.DType != b.DType || a.Unit != b.Unit || a.Len() != b.Len() {
		return false
	}
	if a.TimeFormat != b.TimeFormat || a.TimeScale != b.TimeScale {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Masked(i) != b.Masked(i) {
			return false
		}
		if a.Masked(i) {
			continue
		}
		switch a.DType {
		case Int64:
			if a.Ints[i] != b.Ints[i] {
				return false
			}
		case Float64, Time:
			x, y := a.Floats[i], b.Floats[i]
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		case String:
			if a.Strings[i] != b.Strings[i] {
				return false
			}
		case Bool:
			if a.Bools[i] != b.Bools[i] {
				return false
			}
		}
	}
	return true
}
