// Package partition splits the combined table into one export table per
// owner, as assigned by the management source.
package partition

import (
	"github.com/franz/order-recon/internal/source"
	"github.com/franz/order-recon/internal/table"
	"github.com/shopspring/decimal"
)

// AssignmentColumn holds the owner of each combined row
var AssignmentColumn = source.Column(source.ColResponsible, source.Management)

// ExportColumns is the fixed projection written for every owner, in order
var ExportColumns = []string{
	source.ColDaysLeft,
	source.Column("CNME", source.Orders),
	source.Column("HROUT", source.Orders),
	source.Column("HSTAT", source.Orders),
	source.Column("LODTE", source.Orders),
	source.Column(source.ColReqDate, source.Orders),
	source.Column(source.ColOrder, source.Orders),
	source.Column("HCPO", source.Orders),
	source.Column(source.ColLine, source.Orders),
	source.Column("LSTAT", source.Orders),
	source.Column(source.ColProduct, source.Orders),
	source.Column("LDESC", source.Orders),
	source.Column(source.ColQtyOrdered, source.Orders),
	source.Column("LQALL", source.Orders),
	source.Column("LQSHP", source.Orders),
	source.Column(source.ColCustomer, source.Orders),
	source.Column("Faltan", source.Orders),
	source.Column("Stock 10", source.Orders),
	source.Column("Ubicación", source.Inventory),
	source.Column("Contenedor", source.Inventory),
	source.Column("Cantidad", source.Inventory),
	source.Column("pedido", source.Inventory),
	source.Column("ESTADO", source.Status),
	source.Column("OBSERVACION", source.Status),
	source.Column(source.ColPrice, source.Pricing),
	source.Column(source.ColOnHand, source.Pricing),
}

var (
	quantityColumn = source.Column(source.ColQtyOrdered, source.Orders)
	priceColumn    = source.Column(source.ColPrice, source.Pricing)
)

// Export is one owner's slice of the combined table
type Export struct {
	Owner string
	Table *table.Table
}

// Result holds the partitions of one combined table
type Result struct {
	// Applicable is false when the table has no assignment column
	Applicable bool
	Exports    []Export
	// MissingColumns lists export columns the combined table lacked
	MissingColumns []string
	// Unassigned counts rows without an owner
	Unassigned int
}

// Rows returns the total number of exported rows
func (r *Result) Rows() int {
	n := 0
	for _, e := range r.Exports {
		n += e.Table.Len()
	}
	return n
}

// Partition groups t by owner in first-appearance order, projects each group
// onto ExportColumns and appends the VALUE_TOTAL line value.
func Partition(t *table.Table) (*Result, error) {
	ownerIdx, ok := t.ColumnIndex(AssignmentColumn)
	if !ok {
		return &Result{Applicable: false}, nil
	}

	projected, missing, err := t.Project(ExportColumns)
	if err != nil {
		return nil, err
	}

	totals := make([]table.Value, t.Len())
	for i := range totals {
		totals[i] = LineValue(t.Get(i, quantityColumn), t.Get(i, priceColumn))
	}
	withTotals, err := projected.InsertColumn(projected.Width(), source.ColValueTotal, totals)
	if err != nil {
		return nil, err
	}

	res := &Result{Applicable: true, MissingColumns: missing}

	var order []string
	groups := make(map[string][]int)
	for i := 0; i < t.Len(); i++ {
		owner := t.Row(i)[ownerIdx]
		if owner.IsNull() {
			res.Unassigned++
			continue
		}
		name := owner.String()
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], i)
	}

	for _, name := range order {
		part := withTotals.Select(groups[name]).Rename(name)
		res.Exports = append(res.Exports, Export{Owner: name, Table: part})
	}

	return res, nil
}

// LineValue multiplies quantity by unit price. It is Null unless both are
// numeric, so a missing price stays distinguishable from a free item.
func LineValue(qty, price table.Value) table.Value {
	qi, qInt := intOnly(qty)
	pi, pInt := intOnly(price)
	if qInt && pInt {
		return table.IntValue(qi * pi)
	}

	q, ok := qty.Float()
	if !ok {
		return table.NullValue()
	}
	p, ok := price.Float()
	if !ok {
		return table.NullValue()
	}
	return table.FloatValue(decimal.NewFromFloat(q).Mul(decimal.NewFromFloat(p)).InexactFloat64())
}

func intOnly(v table.Value) (int64, bool) {
	if v.Kind() != table.Int {
		return 0, false
	}
	return v.Int()
}
