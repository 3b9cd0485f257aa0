package scoring

import (
	"errors"
	"strings"
	"time"

	"haxquest/internal/pkg"
)

type Season string

const (
	SeasonDaily   Season = "daily"
	SeasonWeekly  Season = "weekly"
	SeasonAllTime Season = "all_time"
)

var ErrUnknownSeason = errors.New("unknown season")

// ParseSeason accepts daily, weekly and all_time; empty means all_time.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeasonAllTime, "alltime", "all-time":
		return SeasonAllTime, nil
	case SeasonDaily:
		return SeasonDaily, nil
	case SeasonWeekly:
		return SeasonWeekly, nil
	}
	return "", ErrUnknownSeason
}

// WindowStart is the inclusive lower bound of the season at now; nil for all_time.
func WindowStart(season Season, now time.Time) *time.Time {
	var start time.Time
	switch season {
	case SeasonDaily:
		start = pkg.StartOfDay(now)
	case SeasonWeekly:
		start = pkg.StartOfWeek(now)
	default:
		return nil
	}
	return &start
}
