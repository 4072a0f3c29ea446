package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the storage class of a cell
type Kind uint8

const (
	Null Kind = iota
	String
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "null"
	}
}

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
}

// NullValue returns a missing cell
func NullValue() Value { return Value{} }

// StringValue wraps a string cell
func StringValue(s string) Value { return Value{kind: String, str: s} }

// IntValue wraps an integer cell
func IntValue(i int64) Value { return Value{kind: Int, i: i} }

// FloatValue wraps a float cell. NaN is treated as missing.
func FloatValue(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: Float, f: f}
}

// Parse infers a Value from spreadsheet text:
// empty -> Null, integer literal -> Int, finite float literal -> Float,
// anything else -> String. Digits with a leading zero ("01") stay String,
// numeric cells never carry one.
func Parse(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	if hasLeadingZero(s) {
		return StringValue(s)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return FloatValue(f)
	}
	return StringValue(s)
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

// Kind returns the storage class of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool { return v.kind == Null }

// Int returns the integer content. Integral floats are accepted.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case Int:
		return v.i, true
	case Float:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < math.MaxInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Float returns a numeric reading for Int and Float cells only
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	}
	return 0, false
}

// Str returns the raw string content of a String cell
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.str, true
}

// String renders the value for display. Null renders empty.
func (v Value) String() string {
	switch v.kind {
	case String:
		return v.str
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}

// Key is the string form used to match values across sources.
// An integral float keys like the equivalent integer so 100 and 100.0 match.
func (v Value) Key() string {
	if v.kind == Float {
		if i, ok := v.Int(); ok {
			return strconv.FormatInt(i, 10)
		}
	}
	return v.String()
}

// Interface returns the value as a plain Go value (nil, string, int64, float64)
func (v Value) Interface() interface{} {
	switch v.kind {
	case String:
		return v.str
	case Int:
		return v.i
	case Float:
		return v.f
	default:
		return nil
	}
}

// FromInterface converts a driver or decoder value into a Value
func FromInterface(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case bool:
		if t {
			return IntValue(1)
		}
		return IntValue(0)
	default:
		return Value{}
	}
}
