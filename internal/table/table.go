// Package table implements the in-memory tabular model the reconciliation
// pipeline works on: ordered columns, rows of typed cells, and the
// operations that build the combined table (namespacing, deduplication and
// left joins). Every operation returns a new Table and leaves its input
// untouched.
package table

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn indicates a referenced column does not exist
	ErrMissingColumn = errors.New("missing column")

	// ErrColumnCollision indicates two columns would share a name
	ErrColumnCollision = errors.New("column collision")

	// ErrRowWidth indicates a row does not match the table's column count
	ErrRowWidth = errors.New("row width mismatch")
)

// Table is a named rectangular dataset
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New creates an empty table with the given columns
func New(name string, columns []string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("%w: %q in %s", ErrColumnCollision, c, name)
		}
		index[c] = i
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &Table{name: name, columns: cols, index: index}, nil
}

// MustNew is New for statically known column sets
func MustNew(name string, columns []string) *Table {
	t, err := New(name, columns)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column names in order
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Width returns the number of columns
func (t *Table) Width() int { return len(t.columns) }

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Row returns row i. The slice must not be modified.
func (t *Table) Row(i int) []Value { return t.rows[i] }

// Get returns the cell at row i in the named column, Null if the column is absent
func (t *Table) Get(i int, column string) Value {
	c, ok := t.index[column]
	if !ok {
		return Value{}
	}
	return t.rows[i][c]
}

// Column returns every value of a column
func (t *Table) Column(name string) ([]Value, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, name, t.name)
	}
	vals := make([]Value, len(t.rows))
	for i, row := range t.rows {
		vals[i] = row[c]
	}
	return vals, nil
}

// Append adds a row. The table takes ownership of the slice.
func (t *Table) Append(row []Value) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("%w: got %d values for %d columns in %s", ErrRowWidth, len(row), len(t.columns), t.name)
	}
	t.rows = append(t.rows, row)
	return nil
}

// Rename returns a copy carrying a different name
func (t *Table) Rename(name string) *Table {
	c := t.clone()
	c.name = name
	return c
}

// Namespace returns a copy with every column c renamed to c_<tag>
func (t *Table) Namespace(tag string) *Table {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c + "_" + tag
	}
	// Suffixing distinct names with the same tag keeps them distinct.
	out := MustNew(t.name, cols)
	out.rows = append([][]Value(nil), t.rows...)
	return out
}

// InsertColumn returns a copy with a new column at position pos
func (t *Table) InsertColumn(pos int, name string, values []Value) (*Table, error) {
	if pos < 0 || pos > len(t.columns) {
		return nil, fmt.Errorf("insert position %d out of range for %s", pos, t.name)
	}
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("%w: column %q has %d values for %d rows", ErrRowWidth, name, len(values), len(t.rows))
	}

	cols := make([]string, 0, len(t.columns)+1)
	cols = append(cols, t.columns[:pos]...)
	cols = append(cols, name)
	cols = append(cols, t.columns[pos:]...)

	out, err := New(t.name, cols)
	if err != nil {
		return nil, err
	}

	out.rows = make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, 0, len(row)+1)
		r = append(r, row[:pos]...)
		r = append(r, values[i])
		r = append(r, row[pos:]...)
		out.rows[i] = r
	}
	return out, nil
}

// MapColumn returns a copy with fn applied to every cell of the column
func (t *Table) MapColumn(name string, fn func(Value) Value) (*Table, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, name, t.name)
	}

	out := t.clone()
	for i, row := range t.rows {
		r := make([]Value, len(row))
		copy(r, row)
		r[c] = fn(row[c])
		out.rows[i] = r
	}
	return out, nil
}

// Filter returns a copy holding the rows for which keep returns true
func (t *Table) Filter(keep func(row []Value) bool) *Table {
	out := MustNew(t.name, t.columns)
	for _, row := range t.rows {
		if keep(row) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Select returns a copy holding the given rows in the given order
func (t *Table) Select(rows []int) *Table {
	out := MustNew(t.name, t.columns)
	out.rows = make([][]Value, len(rows))
	for i, r := range rows {
		out.rows[i] = t.rows[r]
	}
	return out
}

// Project returns a copy restricted to the given columns in the given order.
// Columns that do not exist are filled with Null and reported in missing.
func (t *Table) Project(columns []string) (out *Table, missing []string, err error) {
	out, err = New(t.name, columns)
	if err != nil {
		return nil, nil, err
	}

	src := make([]int, len(columns))
	for i, c := range columns {
		idx, ok := t.index[c]
		if !ok {
			idx = -1
			missing = append(missing, c)
		}
		src[i] = idx
	}

	out.rows = make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(columns))
		for j, idx := range src {
			if idx >= 0 {
				r[j] = row[idx]
			}
		}
		out.rows[i] = r
	}
	return out, missing, nil
}

func (t *Table) clone() *Table {
	out := MustNew(t.name, t.columns)
	out.rows = make([][]Value, len(t.rows))
	copy(out.rows, t.rows)
	return out
}
