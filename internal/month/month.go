// Package month models calendar months. Values compare as year-month pairs,
// never as strings, and arithmetic always steps whole calendar months.
package month

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalid = errors.New("invalid month")

const layout = "01-2006"

type Month struct {
	Year  int
	Month time.Month
}

// New normalizes out-of-range months, so New(2024, 13) is 01-2025.
func New(year int, m time.Month) Month {
	return Of(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC))
}

func Of(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Parse accepts the MM-YYYY form used throughout storage and the API.
func Parse(s string) (Month, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Month{}, fmt.Errorf("%w %q: expected MM-YYYY", ErrInvalid, s)
	}
	return Of(t), nil
}

// ParseISO accepts YYYY-MM and full RFC 3339 timestamps as returned by vendor
// billing APIs.
func ParseISO(s string) (Month, error) {
	for _, l := range []string{"2006-01", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(l, s); err == nil {
			return Of(t), nil
		}
	}
	return Month{}, fmt.Errorf("%w %q", ErrInvalid, s)
}

func MustParse(s string) Month {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) String() string {
	return fmt.Sprintf("%02d-%04d", int(m.Month), m.Year)
}

// ISO renders YYYY-MM.
func (m Month) ISO() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) AddMonths(n int) Month {
	return New(m.Year, m.Month+time.Month(n))
}

func (m Month) Next() Month { return m.AddMonths(1) }
func (m Month) Prev() Month { return m.AddMonths(-1) }

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) Compare(o Month) int {
	switch a, b := m.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m Month) Before(o Month) bool { return m.Compare(o) < 0 }
func (m Month) After(o Month) bool  { return m.Compare(o) > 0 }

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Span lists every month from first through last inclusive. It is empty when
// last precedes first.
func Span(first, last Month) []Month {
	if last.Before(first) {
		return nil
	}
	out := make([]Month, 0, last.index()-first.index()+1)
	for m := first; !m.After(last); m = m.Next() {
		out = append(out, m)
	}
	return out
}

func Sort(ms []Month) {
	slices.SortFunc(ms, Month.Compare)
}

// Range is an inclusive month interval.
type Range struct {
	From Month
	To   Month
}

func (r Range) Contains(m Month) bool {
	return !m.Before(r.From) && !m.After(r.To)
}

func (r Range) String() string {
	return r.From.String() + ".." + r.To.String()
}
