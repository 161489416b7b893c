// Package daterange implements civil-calendar day arithmetic, the two-tap
// date range selector and the per-day calendar marks derived from it.
package daterange

import (
	"fmt"
	"time"
)

// Layout is the canonical calendar-day key format.
const Layout = "2006-01-02"

// Day is a calendar date without time of day. Equality and ordering are
// defined on the year-month-day triple alone; no time zone is involved.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay returns the normalised day for y-m-d (out-of-range values roll
// over the way time.Date does).
func NewDay(y int, m time.Month, d int) Day {
	return DayOf(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the civil date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a YYYY-MM-DD string. A longer ISO timestamp is accepted
// and truncated to its date part, which is what the event backend sends for
// timestamp columns.
func ParseDay(s string) (Day, error) {
	if len(s) > len(Layout) && s[len(Layout)] == 'T' {
		s = s[:len(Layout)]
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Day{}, fmt.Errorf("daterange: parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay is ParseDay for literals; it panics on malformed input.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Day (no date).
func (d Day) IsZero() bool {
	return d == Day{}
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of d in loc.
func (d Day) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String returns the calendar-day key (YYYY-MM-DD), or "" for the zero Day.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Day) Compare(o Day) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Before reports whether d is strictly before o.
func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly after o.
func (d Day) After(o Day) bool { return d.Compare(o) > 0 }

// Equal reports whether d and o are the same calendar day.
func (d Day) Equal(o Day) bool { return d == o }

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return NewDay(d.Year, d.Month, d.Day+n)
}

const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the number of days from d to o; negative when o is
// before d.
func (d Day) DaysUntil(o Day) int {
	return int((o.Time().Unix() - d.Time().Unix()) / secondsPerDay)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD. Empty input yields the zero Day.
func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Day{}
		return nil
	}
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
