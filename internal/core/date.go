package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	isoDateLayout = "2006-01-02"
	// rfc1123Layout matches the HTTP-date style some add-on versions emit,
	// e.g. "Fri, 10 Nov 2023 00:00:00 GMT".
	rfc1123Layout = "Mon, 02 Jan 2006 15:04:05"
)

// NewDate creates a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now(), loc)
}

// DateOf returns the calendar day of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, m, d)
}

// ParseDate accepts ISO dates (2006-01-02) and RFC 1123 timestamps with a
// GMT suffix. Only the calendar day is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(isoDateLayout, s); err == nil {
		return NewDate(t.Date()), nil
	}
	if strings.HasSuffix(s, " GMT") {
		if t, err := time.Parse(rfc1123Layout, strings.TrimSuffix(s, " GMT")); err == nil {
			return NewDate(t.Date()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// AddDays returns the date n days later (or earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// InRange reports whether from <= d < to.
func (d Date) InRange(from, to Date) bool {
	return !d.Before(from) && d.Before(to)
}

// String renders the ISO form, e.g. "2025-03-01".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoDateLayout)
}
