package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for humans (e.g. "1.2 MB")
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatCount renders a count with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// DateLayout is the layout accepted for processing dates on the command line
const DateLayout = "2006-01-02"

// ParseDate reads a processing date. An empty string means today.
func ParseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	d, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidConfig, s)
	}
	return d, nil
}
