package budget

import (
	"time"
)

// =============================================================================
// DATE - Calendar day, no time component
// =============================================================================

// Date is a calendar day normalized to UTC. All day boundaries in the
// engine are UTC calendar days; a local wall-clock boundary would make
// "today" ambiguous across timezones and midnight-crossing sessions.
type Date struct {
	Time time.Time
}

// Constructors

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD string, the storage format for all dates.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Comparison

func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic

func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysBetween returns the whole number of days from one date to another,
// rounding partial days up. A pay period ending on payday has
// DaysBetween(start, payday) spendable days, payday itself excluded.
func DaysBetween(from, to Date) int {
	hours := to.normalize().Sub(from.normalize()).Hours()
	days := int(hours / 24)
	if hours > float64(days)*24 {
		days++
	}
	return days
}
