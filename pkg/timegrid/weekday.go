package timegrid

import (
	"fmt"
	"strings"
	"time"
)

// Weekdays lists the schedulable days in week order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ParseWeekday normalises a day name case-insensitively to its canonical form.
func ParseWeekday(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, day := range Weekdays {
		if strings.EqualFold(day, trimmed) {
			return day, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
}

// WeekdayOf maps t to a schedulable day. Sundays report false.
func WeekdayOf(t time.Time) (string, bool) {
	wd := t.Weekday()
	if wd == time.Sunday {
		return "", false
	}
	return Weekdays[int(wd)-1], true
}

// DayOrder returns the sort position of a canonical day, or len(Weekdays)
// for unknown values.
func DayOrder(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return len(Weekdays)
}

// TimeWeekday converts a canonical day to time.Weekday.
func TimeWeekday(day string) (time.Weekday, bool) {
	i := DayOrder(day)
	if i >= len(Weekdays) {
		return 0, false
	}
	return time.Weekday(i + 1), true
}
