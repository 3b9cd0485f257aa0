package pkg

import (
	"time"
)

const dateLayout = "2006-01-02"

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns Monday 00:00 UTC of the week containing t.
// The zero time is a Monday, so truncating by whole weeks lands on one.
func StartOfWeek(t time.Time) time.Time {
	return StartOfDay(t).Truncate(time.Hour * 168)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// DaysBetween returns the number of whole UTC days from "from" to "to".
func DaysBetween(from, to string) (int, error) {
	a, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

func ClampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
