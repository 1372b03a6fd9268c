// Package schedule decides whether a capture is permitted at a given
// moment. It is pure: no clocks, no I/O, safe to call at any rate.
package schedule

import (
	"time"

	"github.com/chronocam/chronocam/internal/astro"
	"github.com/chronocam/chronocam/internal/config"
)

// IsActive reports whether now falls inside the schedule's capture
// window: the weekday must be active, the time of day must be inside
// the configured range (inclusive at both ends), and when astral
// gating is enabled the sun must be up. A nil sun with astral gating
// enabled (polar day/night, resolver failure) means outside window.
func IsActive(now time.Time, sched *config.Schedule, sun *astro.Times) bool {
	if !dayActive(now, sched) {
		return false
	}

	start, err := config.ParseClock(sched.ActiveStart)
	if err != nil {
		return false
	}
	end, err := config.ParseClock(sched.ActiveEnd)
	if err != nil {
		return false
	}

	sec := secondOfDay(now)
	if sec < start || sec > end {
		return false
	}

	if sched.UseAstral {
		if sun == nil {
			return false
		}
		if sec < secondOfDay(sun.Sunrise) || sec > secondOfDay(sun.Sunset) {
			return false
		}
	}

	return true
}

func dayActive(now time.Time, sched *config.Schedule) bool {
	today := config.WeekdayName(now.Weekday())
	for _, day := range sched.ActiveDays {
		if day == today {
			return true
		}
	}
	return false
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
