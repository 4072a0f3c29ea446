package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	pretty "github.com/jedib0t/go-pretty/v6/table"

	"github.com/franz/order-recon/internal/table"
)

// view is the slice of a dataset that gets printed
type view struct {
	columns []string
	rows    [][]table.Value
	total   int
}

// newView selects columns (all when empty) and at most limit rows (all when <= 0)
func newView(t *table.Table, columns []string, limit int) (*view, error) {
	if len(columns) == 0 {
		columns = t.Columns()
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := t.ColumnIndex(c)
		if !ok {
			return nil, fmt.Errorf("%w: %s", table.ErrMissingColumn, c)
		}
		idx[i] = j
	}

	n := t.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	v := &view{columns: columns, rows: make([][]table.Value, n), total: t.Len()}
	for i := 0; i < n; i++ {
		src := t.Row(i)
		row := make([]table.Value, len(idx))
		for k, j := range idx {
			row[k] = src[j]
		}
		v.rows[i] = row
	}
	return v, nil
}

func renderView(w io.Writer, v *view, format string) error {
	switch format {
	case "json":
		return renderJSON(w, v)
	case "csv":
		return renderCSV(w, v)
	case "table", "":
		return renderTable(w, v)
	default:
		return fmt.Errorf("unknown format %q (use table, csv or json)", format)
	}
}

func renderTable(w io.Writer, v *view) error {
	if len(v.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := pretty.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pretty.StyleLight)

	header := make(pretty.Row, len(v.columns))
	for i, c := range v.columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, r := range v.rows {
		row := make(pretty.Row, len(r))
		for i, val := range r {
			if val.IsNull() {
				row[i] = "NULL"
			} else {
				row[i] = val.String()
			}
		}
		t.AppendRow(row)
	}

	t.Render()
	if len(v.rows) < v.total {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(v.rows), v.total)
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", v.total)
	}
	return nil
}

func renderJSON(w io.Writer, v *view) error {
	out := make([]map[string]interface{}, len(v.rows))
	for i, r := range v.rows {
		obj := make(map[string]interface{}, len(r))
		for j, val := range r {
			obj[v.columns[j]] = val.Interface()
		}
		out[i] = obj
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, v *view) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(v.columns); err != nil {
		return err
	}
	record := make([]string, len(v.columns))
	for _, r := range v.rows {
		for i, val := range r {
			record[i] = val.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
