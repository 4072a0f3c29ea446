package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTable(t *testing.T, name string, columns []string, rows ...[]string) *Table {
	t.Helper()
	tbl, err := New(name, columns)
	require.NoError(t, err)
	for _, r := range rows {
		vals := make([]Value, len(r))
		for i, s := range r {
			vals[i] = Parse(s)
		}
		require.NoError(t, tbl.Append(vals))
	}
	return tbl
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		str  string
	}{
		{"", Null, ""},
		{"   ", Null, ""},
		{"42", Int, "42"},
		{"-7", Int, "-7"},
		{"3.5", Float, "3.5"},
		{"abc", String, "abc"},
		{"Cod. 10", String, "Cod. 10"},
		{"NaN", String, "NaN"},
		{"01", String, "01"},
		{"0", Int, "0"},
		{"0.25", Float, "0.25"},
		{"Inf", String, "Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := Parse(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, "100", FloatValue(100).Key())
	assert.Equal(t, IntValue(100).Key(), FloatValue(100).Key())
	assert.Equal(t, "2.5", FloatValue(2.5).Key())
	assert.Equal(t, "01", StringValue("01").Key())
	assert.True(t, FloatValue(math.NaN()).IsNull())
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New("x", []string{"a", "b", "a"})
	assert.ErrorIs(t, err, ErrColumnCollision)
}

func TestAppendChecksWidth(t *testing.T) {
	tbl := MustNew("x", []string{"a", "b"})
	err := tbl.Append([]Value{IntValue(1)})
	assert.ErrorIs(t, err, ErrRowWidth)
}

func TestNamespace(t *testing.T) {
	orders := buildTable(t, "orders", []string{"LPROD", "HNAME"}, []string{"P1", "ACME"})

	ns := orders.Namespace("ORDERS")
	assert.Equal(t, []string{"LPROD_ORDERS", "HNAME_ORDERS"}, ns.Columns())
	assert.Equal(t, []string{"LPROD", "HNAME"}, orders.Columns(), "input must be untouched")
	assert.Equal(t, "P1", ns.Get(0, "LPROD_ORDERS").String())
}

func TestNamespaceInjective(t *testing.T) {
	tags := []string{"ORDERS", "INVENTORY", "STATUS", "PRICING", "MANAGEMENT"}
	raw := []string{"LPROD", "HNAME", "LORD", "LLINE", "VALOR"}

	seen := map[string]string{}
	for _, tag := range tags {
		ns := MustNew(tag, raw).Namespace(tag)
		for _, c := range ns.Columns() {
			if prev, dup := seen[c]; dup {
				t.Fatalf("column %q produced by both %s and %s", c, prev, tag)
			}
			seen[c] = tag
		}
	}
	assert.Len(t, seen, len(tags)*len(raw))
}

func TestInsertColumn(t *testing.T) {
	tbl := buildTable(t, "x", []string{"a", "b"}, []string{"1", "2"}, []string{"3", "4"})

	out, err := tbl.InsertColumn(0, "lead", []Value{StringValue("x"), StringValue("y")})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "a", "b"}, out.Columns())
	assert.Equal(t, "y", out.Get(1, "lead").String())
	assert.Equal(t, 2, tbl.Width())

	_, err = tbl.InsertColumn(0, "a", []Value{{}, {}})
	assert.ErrorIs(t, err, ErrColumnCollision)

	_, err = tbl.InsertColumn(0, "short", []Value{{}})
	assert.ErrorIs(t, err, ErrRowWidth)
}

func TestMapColumnLeavesInputUntouched(t *testing.T) {
	tbl := buildTable(t, "x", []string{"a"}, []string{"1"})

	out, err := tbl.MapColumn("a", func(v Value) Value { return IntValue(99) })
	require.NoError(t, err)
	assert.Equal(t, "99", out.Get(0, "a").String())
	assert.Equal(t, "1", tbl.Get(0, "a").String())

	_, err = tbl.MapColumn("missing", func(v Value) Value { return v })
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestProjectFillsMissingColumns(t *testing.T) {
	tbl := buildTable(t, "x", []string{"a", "b"}, []string{"1", "2"})

	out, missing, err := tbl.Project([]string{"b", "zzz", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, missing)
	assert.Equal(t, []string{"b", "zzz", "a"}, out.Columns())
	assert.True(t, out.Get(0, "zzz").IsNull())
	assert.Equal(t, "2", out.Get(0, "b").String())
}

func TestDedupeKeepsFirst(t *testing.T) {
	inv := buildTable(t, "inv", []string{"code", "loc"},
		[]string{"P1", "A"},
		[]string{"P2", "B"},
		[]string{"P1", "C"},
		[]string{"", "D"},
		[]string{"", "E"},
	)

	keyed, err := Dedupe(inv, KeySpec{"code"})
	require.NoError(t, err)
	assert.Equal(t, 3, keyed.Table().Len())
	assert.Equal(t, 2, keyed.Dropped())

	row, ok := keyed.Lookup(NewKey("P1"))
	require.True(t, ok)
	assert.Equal(t, "A", row[1].String())

	_, ok = keyed.Lookup(NewKey(""))
	assert.False(t, ok, "null keys never match")
}

func TestDedupeIdempotent(t *testing.T) {
	inv := buildTable(t, "inv", []string{"code", "loc"},
		[]string{"P1", "A"}, []string{"P1", "B"}, []string{"P2", "C"}, []string{"", "D"})

	once, err := Dedupe(inv, KeySpec{"code"})
	require.NoError(t, err)
	twice, err := Dedupe(once.Table(), KeySpec{"code"})
	require.NoError(t, err)

	assert.Equal(t, 0, twice.Dropped())
	require.Equal(t, once.Table().Len(), twice.Table().Len())
	for i := 0; i < once.Table().Len(); i++ {
		assert.Equal(t, once.Table().Row(i), twice.Table().Row(i))
	}
}

func TestDedupeNullKeysGroupByTuple(t *testing.T) {
	status := MustNew("status", []string{"LORD_STATUS", "LLINE_STATUS", "ESTADO_STATUS"})
	rows := [][]Value{
		{StringValue("100"), NullValue(), StringValue("A")},
		{StringValue("200"), NullValue(), StringValue("B")},
		{StringValue("100"), NullValue(), StringValue("C")},
		{NullValue(), NullValue(), StringValue("D")},
		{StringValue("null"), NullValue(), StringValue("E")},
	}
	for _, r := range rows {
		require.NoError(t, status.Append(r))
	}

	keyed, err := Dedupe(status, KeySpec{"LORD_STATUS", "LLINE_STATUS"})
	require.NoError(t, err)
	assert.Equal(t, 1, keyed.Dropped(), "only the repeated (100, Null) row is a duplicate")
	require.Equal(t, 4, keyed.Table().Len())
	assert.Equal(t, "A", keyed.Table().Get(0, "ESTADO_STATUS").String())
	assert.Equal(t, "B", keyed.Table().Get(1, "ESTADO_STATUS").String())
	assert.Equal(t, "E", keyed.Table().Get(3, "ESTADO_STATUS").String())

	_, ok := keyed.Lookup(NewKey("100", ""))
	assert.False(t, ok, "null keys never match")
}

func TestDedupeMissingKeyColumn(t *testing.T) {
	_, err := Dedupe(MustNew("x", []string{"a"}), KeySpec{"b"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestNewKeyIsDelimiterSafe(t *testing.T) {
	assert.NotEqual(t, NewKey("100", "1"), NewKey("10", "01"))
	assert.NotEqual(t, NewKey("1", "23"), NewKey("12", "3"))
	assert.NotEqual(t, NewKey(`a","b`), NewKey("a", "b"))
	assert.Equal(t, NewKey("100", "1"), NewKey("100", "1"))
}

func TestLeftJoinPreservesLeftRows(t *testing.T) {
	orders := buildTable(t, "orders", []string{"LPROD_ORDERS", "LQORD_ORDERS"},
		[]string{"P1", "2"},
		[]string{"P2", "1"},
		[]string{"P1", "5"},
		[]string{"", "7"},
	)
	inv := buildTable(t, "inv", []string{"code_INVENTORY", "loc_INVENTORY"},
		[]string{"P1", "A"},
		[]string{"P1", "B"},
		[]string{"P3", "C"},
	)

	keyed, err := Dedupe(inv, KeySpec{"code_INVENTORY"})
	require.NoError(t, err)

	out, stats, err := LeftJoin(orders, KeySpec{"LPROD_ORDERS"}, keyed)
	require.NoError(t, err)

	assert.Equal(t, orders.Len(), out.Len())
	assert.Equal(t, JoinStats{Matched: 2, Unmatched: 2}, stats)
	assert.Equal(t, []string{"LPROD_ORDERS", "LQORD_ORDERS", "code_INVENTORY", "loc_INVENTORY"}, out.Columns())
	assert.Equal(t, "A", out.Get(0, "loc_INVENTORY").String())
	assert.True(t, out.Get(1, "loc_INVENTORY").IsNull())
	assert.Equal(t, "A", out.Get(2, "loc_INVENTORY").String())
	assert.True(t, out.Get(3, "code_INVENTORY").IsNull())
}

func TestLeftJoinCompositeKey(t *testing.T) {
	orders := buildTable(t, "orders", []string{"LORD_ORDERS", "LLINE_ORDERS"},
		[]string{"100", "1"},
		[]string{"10", "01"},
	)
	status := MustNew("status", []string{"LORD_STATUS", "LLINE_STATUS", "ESTADO_STATUS"})
	require.NoError(t, status.Append([]Value{StringValue("100"), StringValue("1"), StringValue("OK")}))
	require.NoError(t, status.Append([]Value{StringValue("1"), StringValue("001"), StringValue("BAD")}))

	keyed, err := Dedupe(status, KeySpec{"LORD_STATUS", "LLINE_STATUS"})
	require.NoError(t, err)

	out, stats, err := LeftJoin(orders, KeySpec{"LORD_ORDERS", "LLINE_ORDERS"}, keyed)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, "OK", out.Get(0, "ESTADO_STATUS").String())
	assert.True(t, out.Get(1, "ESTADO_STATUS").IsNull())
}

func TestLeftJoinErrors(t *testing.T) {
	left := MustNew("l", []string{"k", "v"})
	right, err := Dedupe(MustNew("r", []string{"k2", "v"}), KeySpec{"k2"})
	require.NoError(t, err)

	_, _, err = LeftJoin(left, KeySpec{"k"}, right)
	assert.ErrorIs(t, err, ErrColumnCollision)

	_, _, err = LeftJoin(left, KeySpec{"nope"}, right)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, _, err = LeftJoin(left, KeySpec{"k", "v"}, right)
	assert.Error(t, err)
}
