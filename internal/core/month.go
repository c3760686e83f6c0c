package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month. The zero value is not a valid month.
type Month struct {
	year  int
	month time.Month
}

// NewMonth builds a Month, normalizing an out-of-range month number.
func NewMonth(year int, month time.Month) Month {
	return monthFromIndex(year*12 + int(month) - 1)
}

// ParseMonth parses the strict YYYY-MM form used by every table.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return Month{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidMonth, s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y <= 0 {
		return Month{}, fmt.Errorf("%w: bad year in %q", ErrInvalidMonth, s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("%w: bad month in %q", ErrInvalidMonth, s)
	}
	return Month{year: y, month: time.Month(m)}, nil
}

// MustMonth is ParseMonth for literals; it panics on bad input.
func MustMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func monthFromIndex(i int) Month {
	return Month{year: i / 12, month: time.Month(i%12 + 1)}
}

func (m Month) index() int { return m.year*12 + int(m.month) - 1 }

func (m Month) Year() int { return m.year }
func (m Month) Month() time.Month { return m.month }
func (m Month) IsZero() bool { return m.year == 0 && m.month == 0 }
func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool { return m.index() > o.index() }

// Add moves n calendar months forward (or back when n is negative).
func (m Month) Add(n int) Month { return monthFromIndex(m.index() + n) }

// Quarter returns 1..4.
func (m Month) Quarter() int { return (int(m.month)-1)/3 + 1 }

// Compare returns -1, 0 or 1.
func (m Month) Compare(o Month) int {
	switch a, b := m.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// Label is the human form, e.g. "Jan 2023".
func (m Month) Label() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s %d", m.month.String()[:3], m.year)
}

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	p, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = p
	return nil
}

// QuarterStart is the first month of quarter q in year.
func QuarterStart(year, q int) Month {
	return NewMonth(year, time.Month((q-1)*3+1))
}

// MonthsBetween lists every calendar month from start to end inclusive.
// It returns nil when end is before start.
func MonthsBetween(start, end Month) []Month {
	if end.Before(start) {
		return nil
	}
	out := make([]Month, 0, end.index()-start.index()+1)
	for m := start; !m.After(end); m = m.Add(1) {
		out = append(out, m)
	}
	return out
}
