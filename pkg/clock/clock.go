// Package clock supplies "now" and "today" to reconcilers so runs can be
// replayed deterministically.
package clock

import "time"

// DateLayout is the calendar date format used across stored records.
const DateLayout = "2006-01-02"

// Clock reports the current instant in the institution's time zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System reads the process clock.
type System struct {
	loc *time.Location
}

// NewSystem returns a clock bound to loc (UTC when nil).
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{loc: loc}
}

func (s System) Now() time.Time { return time.Now().In(s.Location()) }

func (s System) Location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

func (f Fixed) Location() *time.Location {
	if f.At.Location() == nil {
		return time.UTC
	}
	return f.At.Location()
}

// At pins a clock to t expressed in base's location.
func At(base Clock, t time.Time) Fixed {
	if base == nil {
		return Fixed{At: t}
	}
	return Fixed{At: t.In(base.Location())}
}

// Today truncates c.Now() to midnight in the clock's location.
func Today(c Clock) time.Time {
	return StartOfDay(c.Now())
}

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
