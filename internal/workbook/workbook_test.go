package workbook

import (
	"bytes"
	"testing"

	"github.com/franz/order-recon/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// sheetBytes builds an xlsx in memory from rows of cell values
func sheetBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadInfersTypes(t *testing.T) {
	data := sheetBytes(t, [][]interface{}{
		{"LORD", "LPROD", "LQORD", "VALOR"},
		{100, "P-1", 2, 19.5},
		{101, "00042", nil, "n/a"},
	})

	tbl, err := Read(bytes.NewReader(data), "ORDENES.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"LORD", "LPROD", "LQORD", "VALOR"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, table.Int, tbl.Get(0, "LORD").Kind())
	assert.Equal(t, table.Float, tbl.Get(0, "VALOR").Kind())
	assert.Equal(t, "00042", tbl.Get(1, "LPROD").String())
	assert.Equal(t, table.String, tbl.Get(1, "LPROD").Kind())
	assert.True(t, tbl.Get(1, "LQORD").IsNull())
	assert.Equal(t, "n/a", tbl.Get(1, "VALOR").String())
}

func TestReadNormalisesHeaders(t *testing.T) {
	data := sheetBytes(t, [][]interface{}{
		{"Ubicación", "A", "", "A", "A"},
		{"x", 1, 2, 3, 4},
	})

	tbl, err := Read(bytes.NewReader(data), "INVENTARIO.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ubicación", "A", "Unnamed: 2", "A.1", "A.2"}, tbl.Columns())
}

func TestReadSkipsBlankRowsAndPadsShortRows(t *testing.T) {
	data := sheetBytes(t, [][]interface{}{
		{"a", "b", "c"},
		{1},
		{nil, nil, nil},
		{2, 3, 4},
	})

	tbl, err := Read(bytes.NewReader(data), "x.xlsx")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.Get(0, "c").IsNull())
	assert.Equal(t, "4", tbl.Get(1, "c").String())
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a workbook")), "bad.xlsx")
	assert.Error(t, err)
}

func TestWriteThenRead(t *testing.T) {
	tbl := table.MustNew("export", []string{"CONTROL_DIAS", "LDESC_ORDERS", "VALUE_TOTAL"})
	require.NoError(t, tbl.Append([]table.Value{table.IntValue(-3), table.StringValue("Tornillo"), table.FloatValue(12.5)}))
	require.NoError(t, tbl.Append([]table.Value{table.IntValue(4), table.StringValue("Tuerca"), table.NullValue()}))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tbl, "Datos"))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Datos"}, f.GetSheetList())

	back, err := Read(bytes.NewReader(buf.Bytes()), "export")
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), back.Columns())
	require.Equal(t, 2, back.Len())
	assert.Equal(t, "-3", back.Get(0, "CONTROL_DIAS").String())
	assert.Equal(t, "12.5", back.Get(0, "VALUE_TOTAL").String())
	assert.True(t, back.Get(1, "VALUE_TOTAL").IsNull())
}
