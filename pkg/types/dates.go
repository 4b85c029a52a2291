// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// DayFormat is the wire format for day arguments ("2006-01-02").
const DayFormat = "2006-01-02"

// DefaultDays is the width of the default query window when no explicit
// date range is given.
const DefaultDays = 7

// ParseDay parses a strict YYYY-MM-DD day in UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DayRange returns the half-open UTC window [day 00:00, next day 00:00)
// covering a single day.
func DayRange(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// DefaultRange returns the default query window ending at the given time:
// the last DefaultDays whole days, half-open.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	_, end := DayRange(now.UTC())
	return end.AddDate(0, 0, -DefaultDays), end
}

// Yesterday returns the most recent complete UTC day before now.
func Yesterday(now time.Time) time.Time {
	start, _ := DayRange(now.UTC())
	return start.AddDate(0, 0, -1)
}
