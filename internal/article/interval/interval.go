// Package interval computes the UTC calendar-day bounds used by date range
// article queries.
package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MsgBadDates is what a caller sees for an unusable date range.
const MsgBadDates = "The dates are incorrect"

var ErrBadDateRange = errors.New("bad date range")

const dateOnly = "2006-01-02"

// DayStart is midnight UTC of the UTC calendar day containing t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayEnd is midnight UTC of the following UTC day.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates, the
// latter taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDateRange, s)
	}
	return t, nil
}

// ParseRange parses both ends and rejects from > to.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, err := ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if f.After(t) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s after %s", ErrBadDateRange, from, to)
	}
	return f, t, nil
}
