// Package solar computes sunrise, sunset and civil twilight boundaries for a
// coordinate and derives the current circadian phase from them.
package solar

import (
	"fmt"
	"sync"
	"time"

	"github.com/sixdouglas/suncalc"
)

// DefaultCacheTTL bounds how long a computed SunTimes snapshot stays cached.
const DefaultCacheTTL = 24 * time.Hour

// SunTimes holds the solar boundaries for one coordinate and calendar day.
// Snapshots are immutable once computed; within the cache validity window the
// calculator returns the identical pointer for identical keys.
type SunTimes struct {
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	CivilDawn time.Time `json:"civil_dawn"`
	CivilDusk time.Time `json:"civil_dusk"`
}

type cacheEntry struct {
	times    *SunTimes
	storedAt time.Time
}

// Calculator computes and memoizes SunTimes per (rounded coordinate, day).
type Calculator struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration

	now func() time.Time
}

// NewCalculator creates a calculator with the default cache TTL.
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]cacheEntry),
		ttl:   DefaultCacheTTL,
		now:   time.Now,
	}
}

func cacheKey(lat, lng float64, date time.Time) string {
	return fmt.Sprintf("%.4f,%.4f,%s", lat, lng, date.Format("2006-01-02"))
}

// SunTimes returns the solar boundaries for the given coordinate and the
// calendar day of date. Results are cached; repeated calls with the same
// rounded coordinate and day return the same snapshot until the entry expires.
func (c *Calculator) SunTimes(lat, lng float64, date time.Time) (*SunTimes, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	key := cacheKey(lat, lng, date)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.storedAt) < c.ttl {
		return entry.times, nil
	}

	times := compute(lat, lng, date)

	c.mu.Lock()
	// Another goroutine may have computed the same key meanwhile; keep the
	// first snapshot so callers always observe a stable pointer.
	if entry, ok := c.cache[key]; ok && c.now().Sub(entry.storedAt) < c.ttl {
		c.mu.Unlock()
		return entry.times, nil
	}
	c.evictExpiredLocked()
	c.cache[key] = cacheEntry{times: times, storedAt: c.now()}
	c.mu.Unlock()

	return times, nil
}

// evictExpiredLocked drops entries past their TTL. Caller must hold mu.
func (c *Calculator) evictExpiredLocked() {
	now := c.now()
	for key, entry := range c.cache {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.cache, key)
		}
	}
}

// CurrentPhase returns the circadian phase at the given instant.
func (c *Calculator) CurrentPhase(lat, lng float64, now time.Time) (Phase, error) {
	times, err := c.SunTimes(lat, lng, now)
	if err != nil {
		return "", err
	}
	return times.PhaseAt(now), nil
}

// NextPhaseChange returns the instant at which the given phase ends. For
// night, dawn and day this is a boundary of the same day's SunTimes. Dusk
// lasts past midnight, so it ends at the following day's civil dawn.
func (c *Calculator) NextPhaseChange(phase Phase, lat, lng float64, now time.Time) (time.Time, error) {
	times, err := c.SunTimes(lat, lng, now)
	if err != nil {
		return time.Time{}, err
	}

	if boundary, ok := times.boundaryAfter(phase); ok {
		return boundary, nil
	}

	tomorrow, err := c.SunTimes(lat, lng, now.AddDate(0, 0, 1))
	if err != nil {
		return time.Time{}, err
	}
	return tomorrow.CivilDawn, nil
}

// compute derives the day's boundaries from the solar position algorithm.
func compute(lat, lng float64, date time.Time) *SunTimes {
	times := suncalc.GetTimes(date, lat, lng)

	return &SunTimes{
		Sunrise:   times[suncalc.Sunrise].Value,
		Sunset:    times[suncalc.Sunset].Value,
		CivilDawn: times[suncalc.Dawn].Value,
		CivilDusk: times[suncalc.Dusk].Value,
	}
}
