package models

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no time of day and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// MustDate parses s and panics on error. Intended for tests and constants.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool  { return d.Time().After(other.Time()) }

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (w Window) Days() int {
	return w.Start.DaysUntil(w.End) + 1
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Split breaks w into consecutive windows of at most maxDays days.
// A non-positive maxDays returns w unchanged.
func (w Window) Split(maxDays int) []Window {
	if maxDays <= 0 || w.Days() <= maxDays {
		return []Window{w}
	}
	var out []Window
	for start := w.Start; !start.After(w.End); start = start.AddDays(maxDays) {
		end := start.AddDays(maxDays - 1)
		if end.After(w.End) {
			end = w.End
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out
}
