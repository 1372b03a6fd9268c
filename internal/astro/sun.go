// Package astro resolves sunrise and sunset for a configured
// location, cached per calendar day.
package astro

import (
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Times holds sunrise and sunset in the configured local timezone
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Resolver computes sun times for one coordinate/timezone pair.
// Results are cached for the calendar day so the scheduler can ask
// on every evaluation without recomputing.
type Resolver struct {
	mu        sync.Mutex
	lat, lon  float64
	loc       *time.Location
	cachedDay string
	cached    *Times
}

// NewResolver creates a resolver for the given coordinates. An
// unknown timezone is an error; the schedule validates it at load.
func NewResolver(lat, lon float64, tz string) (*Resolver, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &Resolver{lat: lat, lon: lon, loc: loc}, nil
}

// SunTimes returns sunrise/sunset for now's calendar day in the
// configured timezone. ok is false under polar conditions where the
// sun never rises or never sets on that day.
func (r *Resolver) SunTimes(now time.Time) (Times, bool) {
	local := now.In(r.loc)
	day := local.Format("2006-01-02")

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedDay == day {
		if r.cached == nil {
			return Times{}, false
		}
		return *r.cached, true
	}

	rise, set := sunrise.SunriseSunset(r.lat, r.lon, local.Year(), local.Month(), local.Day())
	r.cachedDay = day
	if rise.IsZero() || set.IsZero() {
		r.cached = nil
		return Times{}, false
	}

	t := Times{Sunrise: rise.In(r.loc), Sunset: set.In(r.loc)}
	r.cached = &t
	return t, true
}
