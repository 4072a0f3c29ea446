package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/franz/order-recon/internal/table"
)

func sample(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.MustNew("datos_combinados", []string{"CONTROL_DIAS", "LPROD_ORDERS", "VALOR_PRICING"})
	rows := [][]table.Value{
		{table.IntValue(3), table.StringValue("P1"), table.FloatValue(2.5)},
		{table.IntValue(-1), table.StringValue("P2"), table.NullValue()},
		{table.NullValue(), table.StringValue("P,3"), table.IntValue(7)},
	}
	for _, r := range rows {
		if err := tbl.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestNewView(t *testing.T) {
	v, err := newView(sample(t), []string{"LPROD_ORDERS", "CONTROL_DIAS"}, 2)
	if err != nil {
		t.Fatalf("newView failed: %v", err)
	}
	if len(v.rows) != 2 || v.total != 3 {
		t.Errorf("expected 2 of 3 rows, got %d of %d", len(v.rows), v.total)
	}
	if got := v.rows[1][0].String(); got != "P2" {
		t.Errorf("expected P2 in first selected column, got %q", got)
	}

	if _, err := newView(sample(t), []string{"NOPE"}, 0); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestRenderTable(t *testing.T) {
	v, _ := newView(sample(t), nil, 2)
	var buf bytes.Buffer
	if err := renderView(&buf, v, "table"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CONTROL_DIAS", "P1", "NULL", "(2 of 3 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	v, _ := newView(sample(t), nil, 0)
	var buf bytes.Buffer
	if err := renderView(&buf, v, "csv"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "CONTROL_DIAS,LPROD_ORDERS,VALOR_PRICING" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[3] != `,"P,3",7` {
		t.Errorf("unexpected quoting %q", lines[3])
	}
}

func TestRenderJSON(t *testing.T) {
	v, _ := newView(sample(t), nil, 0)
	var buf bytes.Buffer
	if err := renderView(&buf, v, "json"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1]["VALOR_PRICING"] != nil {
		t.Errorf("expected null price, got %v", rows[1]["VALOR_PRICING"])
	}
	if rows[0]["VALOR_PRICING"] != 2.5 {
		t.Errorf("expected 2.5, got %v", rows[0]["VALOR_PRICING"])
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	v, _ := newView(sample(t), nil, 0)
	if err := renderView(&bytes.Buffer{}, v, "yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
