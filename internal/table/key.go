package table

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySpec names the columns that form a row key, in order
type KeySpec []string

// Key is a structured row key. Each part is quoted before joining so two
// different part lists never produce the same Key ("100"+"1" vs "10"+"01").
type Key string

// NewKey builds a Key from its parts
func NewKey(parts ...string) Key {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(p))
	}
	return Key(b.String())
}

// resolve maps the spec onto column positions of t
func (k KeySpec) resolve(t *Table) ([]int, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty key for %s", ErrMissingColumn, t.name)
	}
	idx := make([]int, len(k))
	for i, c := range k {
		pos, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: key column %q in %s", ErrMissingColumn, c, t.name)
		}
		idx[i] = pos
	}
	return idx, nil
}

// keyOf returns the key of a row, false when any part is Null
func keyOf(row []Value, idx []int) (Key, bool) {
	parts := make([]string, len(idx))
	for i, pos := range idx {
		v := row[pos]
		if v.IsNull() {
			return "", false
		}
		parts[i] = v.Key()
	}
	return NewKey(parts...), true
}

// groupOf is the dedupe group of a row with a Null key part. Null parts are
// written unquoted so they never equal a quoted string part.
func groupOf(row []Value, idx []int) Key {
	var b strings.Builder
	for i, pos := range idx {
		if i > 0 {
			b.WriteByte(',')
		}
		v := row[pos]
		if v.IsNull() {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.Quote(v.Key()))
	}
	return Key(b.String())
}

// Keyed is a table proven unique on its key. It is only produced by Dedupe.
type Keyed struct {
	table   *Table
	spec    KeySpec
	lookup  map[Key]int
	dropped int
}

// Dedupe keeps the first row for every distinct key and drops the rest.
// Rows with a Null key part are deduplicated on their full key tuple, Null
// equal to Null, and none of them can be looked up.
func Dedupe(t *Table, spec KeySpec) (*Keyed, error) {
	idx, err := spec.resolve(t)
	if err != nil {
		return nil, err
	}

	out := MustNew(t.name, t.columns)
	lookup := make(map[Key]int, len(t.rows))
	nullGroups := make(map[Key]struct{})
	dropped := 0

	for _, row := range t.rows {
		key, ok := keyOf(row, idx)
		if !ok {
			group := groupOf(row, idx)
			if _, dup := nullGroups[group]; dup {
				dropped++
				continue
			}
			nullGroups[group] = struct{}{}
			out.rows = append(out.rows, row)
			continue
		}
		if _, dup := lookup[key]; dup {
			dropped++
			continue
		}
		lookup[key] = len(out.rows)
		out.rows = append(out.rows, row)
	}

	return &Keyed{table: out, spec: append(KeySpec(nil), spec...), lookup: lookup, dropped: dropped}, nil
}

// Table returns the deduplicated table
func (k *Keyed) Table() *Table { return k.table }

// Spec returns the key columns
func (k *Keyed) Spec() KeySpec { return k.spec }

// Dropped returns how many duplicate rows were removed
func (k *Keyed) Dropped() int { return k.dropped }

// Lookup returns the row for a key
func (k *Keyed) Lookup(key Key) ([]Value, bool) {
	i, ok := k.lookup[key]
	if !ok {
		return nil, false
	}
	return k.table.rows[i], true
}
