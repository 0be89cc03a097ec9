// Package cadence implements the date arithmetic behind check-in scheduling.
//
// Frequencies are the unit names the web client sends ("day", "week",
// "month", ...). Adding one unit follows calendar semantics: days and weeks
// keep the wall-clock time across DST changes, and months, quarters and years
// clamp to the last day of the target month.
package cadence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// CheckinValidity is how long a partner has to answer a check-in request.
	CheckinValidity = 48 * time.Hour
	// DueWindow is the distance on either side of now in which a nextCheck is due.
	DueWindow = 24 * time.Hour
)

var ErrUnknownFrequency = errors.New("unknown accountability frequency")

type unit int

const (
	unitMinute unit = iota
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitQuarter
	unitYear
)

// Single-letter units are case sensitive: "m" is a minute, "M" a month.
var shortUnits = map[string]unit{
	"m": unitMinute,
	"h": unitHour,
	"d": unitDay,
	"w": unitWeek,
	"M": unitMonth,
	"Q": unitQuarter,
	"y": unitYear,
}

var longUnits = map[string]unit{
	"minute":    unitMinute,
	"minutes":   unitMinute,
	"hour":      unitHour,
	"hours":     unitHour,
	"hourly":    unitHour,
	"day":       unitDay,
	"days":      unitDay,
	"daily":     unitDay,
	"week":      unitWeek,
	"weeks":     unitWeek,
	"weekly":    unitWeek,
	"month":     unitMonth,
	"months":    unitMonth,
	"monthly":   unitMonth,
	"quarter":   unitQuarter,
	"quarters":  unitQuarter,
	"quarterly": unitQuarter,
	"year":      unitYear,
	"years":     unitYear,
	"yearly":    unitYear,
}

func parse(frequency string) (unit, error) {
	f := strings.TrimSpace(frequency)
	if u, ok := shortUnits[f]; ok {
		return u, nil
	}
	if u, ok := longUnits[strings.ToLower(f)]; ok {
		return u, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
}

// Valid reports whether frequency names a known unit.
func Valid(frequency string) bool {
	_, err := parse(frequency)
	return err == nil
}

// Next returns from advanced by one frequency unit.
func Next(from time.Time, frequency string) (time.Time, error) {
	u, err := parse(frequency)
	if err != nil {
		return time.Time{}, err
	}

	switch u {
	case unitMinute:
		return from.Add(time.Minute), nil
	case unitHour:
		return from.Add(time.Hour), nil
	case unitDay:
		return from.AddDate(0, 0, 1), nil
	case unitWeek:
		return from.AddDate(0, 0, 7), nil
	case unitMonth:
		return addMonths(from, 1), nil
	case unitQuarter:
		return addMonths(from, 3), nil
	default:
		return addMonths(from, 12), nil
	}
}

// ExtendOneWeek pushes a one-time goal's deadline by seven calendar days.
func ExtendOneWeek(from time.Time) time.Time {
	return from.AddDate(0, 0, 7)
}

// DueWindowBounds returns the half-open window [now-1d, now+1d) in which a
// goal's nextCheck makes it due for a check-in request.
func DueWindowBounds(now time.Time) (from, to time.Time) {
	return now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)
}

// CheckinExpiry returns when a check-in requested at now stops being answerable.
func CheckinExpiry(now time.Time) time.Time {
	return now.Add(CheckinValidity)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	first := time.Date(y, m+time.Month(n), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}

	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
