package table

import "fmt"

// JoinStats summarises a left join
type JoinStats struct {
	Matched   int
	Unmatched int
}

// LeftJoin appends the columns of right to left, matching left rows on
// leftKey against the right side's key. Every left row is kept exactly once;
// unmatched rows get Null in the right columns.
func LeftJoin(left *Table, leftKey KeySpec, right *Keyed) (*Table, JoinStats, error) {
	var stats JoinStats

	if len(leftKey) != len(right.spec) {
		return nil, stats, fmt.Errorf("join %s to %s: key has %d parts, right side has %d",
			left.name, right.table.name, len(leftKey), len(right.spec))
	}

	idx, err := leftKey.resolve(left)
	if err != nil {
		return nil, stats, err
	}

	cols := make([]string, 0, len(left.columns)+len(right.table.columns))
	cols = append(cols, left.columns...)
	cols = append(cols, right.table.columns...)

	out, err := New(left.name, cols)
	if err != nil {
		return nil, stats, fmt.Errorf("join %s to %s: %w", left.name, right.table.name, err)
	}

	width := len(right.table.columns)
	out.rows = make([][]Value, len(left.rows))
	for i, row := range left.rows {
		r := make([]Value, 0, len(cols))
		r = append(r, row...)

		var match []Value
		if key, ok := keyOf(row, idx); ok {
			match, _ = right.Lookup(key)
		}

		if match != nil {
			r = append(r, match...)
			stats.Matched++
		} else {
			r = append(r, make([]Value, width)...)
			stats.Unmatched++
		}
		out.rows[i] = r
	}

	return out, stats, nil
}
