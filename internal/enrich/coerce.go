package enrich

import (
	"math"
	"strings"

	"github.com/franz/order-recon/internal/table"
	"github.com/shopspring/decimal"
)

// Coerce converts a cell to an integer. Floats truncate toward zero, text is
// parsed as a decimal number, and anything unparseable (including blanks) or
// beyond the int64 range becomes 0.
func Coerce(v table.Value) table.Value {
	switch v.Kind() {
	case table.Int:
		return v
	case table.Float:
		f, _ := v.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return table.IntValue(0)
		}
		return truncate(decimal.NewFromFloat(f))
	case table.String:
		s, _ := v.Str()
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return table.IntValue(0)
		}
		return truncate(d)
	default:
		return table.IntValue(0)
	}
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt64)
	minInt = decimal.NewFromInt(math.MinInt64)
)

// truncate drops the fraction of d. Values outside the int64 range become 0.
func truncate(d decimal.Decimal) table.Value {
	whole := d.Truncate(0)
	if whole.GreaterThan(maxInt) || whole.LessThan(minInt) {
		return table.IntValue(0)
	}
	return table.IntValue(whole.IntPart())
}

// CoerceColumns applies Coerce to each named column that exists in t
func CoerceColumns(t *table.Table, columns ...string) (*table.Table, error) {
	out := t
	for _, c := range columns {
		if !out.HasColumn(c) {
			continue
		}
		var err error
		out, err = out.MapColumn(c, Coerce)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
