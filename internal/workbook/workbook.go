// Package workbook converts between xlsx spreadsheets and tables
package workbook

import (
	"fmt"
	"io"
	"strconv"

	"github.com/franz/order-recon/internal/table"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// Read parses the first sheet of a workbook. The first row is the header.
func Read(r io.Reader, name string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", name)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], name, err)
	}

	if len(rows) == 0 {
		return table.New(name, nil)
	}

	t, err := table.New(name, headers(rows[0]))
	if err != nil {
		return nil, err
	}

	width := t.Width()
	for _, raw := range rows[1:] {
		if blank(raw) {
			continue
		}
		vals := make([]table.Value, width)
		for i := 0; i < width && i < len(raw); i++ {
			vals[i] = table.Parse(raw[i])
		}
		if err := t.Append(vals); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// headers normalises a header row: NFC names, "Unnamed: i" for blanks and
// ".n" suffixes for repeated names.
func headers(row []string) []string {
	out := make([]string, len(row))
	used := make(map[string]bool, len(row))
	next := make(map[string]int, len(row))

	for i, h := range row {
		h = norm.NFC.String(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			next[h]++
			name = h + "." + strconv.Itoa(next[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// Write serialises t as a single-sheet workbook
func Write(w io.Writer, t *table.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, t.Width())
	for i, c := range t.Columns() {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v.Interface()
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
