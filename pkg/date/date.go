// Package date provides a calendar date without a time-of-day component.
//
// Task schedules (start, end, original end, last delay) are whole days. Using
// time.Time for them invites off-by-hours bugs around time zones and DST, so
// every schedule field is a Date and day arithmetic happens in UTC.
package date

import (
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Date is a calendar date in the proleptic Gregorian calendar.
// The zero value is not a valid date; IsZero reports it.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the date on which t falls, in t's location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// New returns the normalized date for the given year, month and day.
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Parse parses a date in YYYY-MM-DD form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Of(t), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC at the start of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return d.Time().Format(layout)
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// AddDays returns d shifted by n days. n may be negative.
func (d Date) AddDays(n int) Date {
	return Of(d.Time().AddDate(0, 0, n))
}

const secondsPerDay = 24 * 60 * 60

// DaysSince returns the number of whole days from other to d.
// It is negative when d is before other.
func (d Date) DaysSince(other Date) int {
	// Unix seconds rather than Time.Sub, which saturates after ~292 years.
	return int((d.Time().Unix() - other.Time().Unix()) / secondsPerDay)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Ptr returns a pointer to a copy of d. Schedule fields are optional and
// modelled as *Date.
func Ptr(d Date) *Date {
	return &d
}
