// Package enrich derives and normalises fields on source tables before they
// are joined: the days-remaining aging column and integer coercion of
// monetary and quantity columns.
package enrich

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/franz/order-recon/internal/table"
)

// ErrDateParse indicates a value could not be read as a YYYYMMDD date
var ErrDateParse = errors.New("date parse error")

// DateError reports the row and raw value of an unreadable date
type DateError struct {
	Column string
	Row    int
	Value  string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s: column %s row %d: %q is not a YYYYMMDD date", ErrDateParse, e.Column, e.Row+1, e.Value)
}

func (e *DateError) Unwrap() error { return ErrDateParse }

// AgingOptions controls how bad dates are handled
type AgingOptions struct {
	// Lenient turns unreadable dates into Null instead of failing the run
	Lenient bool
	// OnInvalid is called for each unreadable date when Lenient is set
	OnInvalid func(err *DateError)
}

// AgingResult describes what Aging did
type AgingResult struct {
	Applied bool
	Invalid int
}

// Aging inserts column as the leading column of t, holding the signed number
// of days between the YYYYMMDD date in dateColumn and processedOn. When
// dateColumn is absent t is returned unchanged.
func Aging(t *table.Table, dateColumn, column string, processedOn time.Time, opts AgingOptions) (*table.Table, AgingResult, error) {
	var res AgingResult

	values, err := t.Column(dateColumn)
	if err != nil {
		return t, res, nil
	}

	today := civilDate(processedOn)
	days := make([]table.Value, len(values))

	for i, v := range values {
		d, ok := ParseYYYYMMDD(v)
		if !ok {
			derr := &DateError{Column: dateColumn, Row: i, Value: v.String()}
			if !opts.Lenient {
				return nil, res, derr
			}
			res.Invalid++
			if opts.OnInvalid != nil {
				opts.OnInvalid(derr)
			}
			continue
		}
		days[i] = table.IntValue(daysBetween(today, d))
	}

	out, err := t.InsertColumn(0, column, days)
	if err != nil {
		return nil, res, err
	}
	res.Applied = true
	return out, res, nil
}

// ParseYYYYMMDD reads an integer-encoded calendar date such as 20251105.
// Ints, integral floats and digit strings are accepted.
func ParseYYYYMMDD(v table.Value) (time.Time, bool) {
	var n int64
	switch v.Kind() {
	case table.Int, table.Float:
		i, ok := v.Int()
		if !ok {
			return time.Time{}, false
		}
		n = i
	case table.String:
		s, _ := v.Str()
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		n = i
	default:
		return time.Time{}, false
	}

	if n < 10000101 || n > 99991231 {
		return time.Time{}, false
	}

	d, err := time.Parse("20060102", strconv.FormatInt(n, 10))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// daysBetween counts whole days from a to b, both UTC midnights. It avoids
// time.Duration, which cannot span more than about 292 years.
func daysBetween(a, b time.Time) int64 {
	return (b.Unix() - a.Unix()) / 86400
}

// civilDate drops the time of day, keeping the calendar date in t's location
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
