package model

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date format used by the ledgers
// and the day index.
const DateLayout = "2006-01-02"

// DateKey formats t as a canonical date string, dropping the time of day.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a canonical date string into a midnight-UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Midnight truncates t to the start of its calendar day in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ValidClock reports whether s is a well-formed "HH:MM" time of day.
// The empty string is valid and means "untimed".
func ValidClock(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
