package booking

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (the only granularity a booking has)
// =============================================================================

// DateLayout is the strict ISO form used on the wire and in files.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day and no zone.
// It is comparable, so it can be used as a map key.
type Date struct {
	year  int
	month time.Month
	day   int
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// Today returns the current day in loc, read from clock.
func Today(clock func() time.Time, loc *time.Location) Date {
	return DateOf(clock().In(loc))
}

// ParseDate accepts exactly YYYY-MM-DD and rejects impossible days.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time { return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC) }

// Comparison
func (d Date) Before(other Date) bool        { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool         { return d.Time().After(other.Time()) }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// Properties
func (d Date) Year() int             { return d.year }
func (d Date) Month() time.Month     { return d.month }
func (d Date) Day() int              { return d.day }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsZero() bool          { return d.year == 0 && d.month == 0 && d.day == 0 }
func (d Date) String() string        { return d.Time().Format(DateLayout) }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// DATE SET
// =============================================================================

// DateSet is a set of calendar days.
type DateSet map[Date]struct{}

func NewDateSet(dates ...Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DateSet) Add(d Date) { s[d] = struct{}{} }
func (s DateSet) Len() int    { return len(s) }

func (s DateSet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

// DaysBetween counts whole days from a to b (negative when b is before a).
func DaysBetween(a, b Date) int { return int(b.Time().Sub(a.Time()).Hours() / 24) }

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) Date {
	return DateOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
