// Package week computes ISO week identifiers and the bet window.
// All calculations are done in UTC.
package week

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrInvalidWeekID = errors.New("invalid week id")

const dayLayout = "2006-01-02"

// ID returns the ISO week id of t, e.g. "2025-W03".
func ID(t time.Time) string {
	year, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, w)
}

// Day returns the UTC calendar day of t.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay parses a day produced by Day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, time.UTC)
}

// Start returns Monday 00:00 UTC of the given week.
func Start(id string) (time.Time, error) {
	if len(id) != 8 || id[4:6] != "-W" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	year, err := strconv.Atoi(id[:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	w, err := strconv.Atoi(id[6:])
	if err != nil || w < 1 || w > 53 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}

	// 4 January is always in ISO week 1
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+(w-1)*7)

	// week 53 only exists in long years
	if ID(start) != id {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	return start, nil
}

// Bounds returns the half-open interval [start, end) covered by the week.
func Bounds(id string) (time.Time, time.Time, error) {
	start, err := Start(id)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 7), nil
}

func Previous(id string) (string, error) {
	start, err := Start(id)
	if err != nil {
		return "", err
	}
	return ID(start.AddDate(0, 0, -7)), nil
}

func Next(id string) (string, error) {
	start, err := Start(id)
	if err != nil {
		return "", err
	}
	return ID(start.AddDate(0, 0, 7)), nil
}

// Ended reports whether the week is over at now.
func Ended(id string, now time.Time) (bool, error) {
	_, end, err := Bounds(id)
	if err != nil {
		return false, err
	}
	return !now.UTC().Before(end), nil
}

// DefaultCloseBefore is how long before the end of the week betting closes.
const DefaultCloseBefore = time.Hour

// Window decides whether new bets are accepted.
// With AlwaysOpen unset, betting closes CloseBefore (DefaultCloseBefore when zero)
// the end of every week.
type Window struct {
	AlwaysOpen  bool
	CloseBefore time.Duration
}

func (w Window) closeBefore() time.Duration {
	if w.CloseBefore <= 0 {
		return DefaultCloseBefore
	}
	return w.CloseBefore
}

func (w Window) IsOpen(now time.Time) bool {
	if w.AlwaysOpen {
		return true
	}
	_, end, err := Bounds(ID(now))
	if err != nil {
		return false
	}
	return now.UTC().Before(end.Add(-w.closeBefore()))
}

// ClosesAt returns when the window containing now closes.
func (w Window) ClosesAt(now time.Time) time.Time {
	_, end, _ := Bounds(ID(now))
	if w.AlwaysOpen {
		return end
	}
	return end.Add(-w.closeBefore())
}
