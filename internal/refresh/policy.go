// Package refresh decides when a remote forecast fetch is needed and keeps
// the bookkeeping that throttles redundant network calls.
package refresh

import (
	"math"
	"sync"
	"time"

	"weather-companion/internal/models"
)

// MinInterval is the default re-fetch throttle for an unchanged location.
const MinInterval = 10 * time.Minute

// CoordinateTolerance is the same-location tolerance in degrees on each
// axis. Chosen to absorb GPS jitter, not to distinguish nearby cities.
const CoordinateTolerance = 0.01

// Bookkeeping records the last successful fetch. Zero value means no fetch
// has happened yet. Updated only on success, so a failed fetch is retried on
// the next trigger instead of being throttled.
type Bookkeeping struct {
	mu          sync.Mutex
	lastFetch   time.Time
	lastCoords  models.Coordinates
	haveCoords  bool
}

// MarkFetched records a successful fetch at now for the given coordinates.
func (b *Bookkeeping) MarkFetched(coords models.Coordinates, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFetch = now
	b.lastCoords = coords
	b.haveCoords = true
}

// LastFetch returns the recorded fetch instant and coordinates. ok is false
// before the first successful fetch.
func (b *Bookkeeping) LastFetch() (time.Time, models.Coordinates, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFetch, b.lastCoords, b.haveCoords
}

// Policy decides fetch necessity. The zero MinInterval/Tolerance fields fall
// back to the package defaults.
type Policy struct {
	MinInterval time.Duration
	Tolerance   float64
}

// ShouldFetch reports whether a remote fetch is required for target. It is
// true unconditionally when force is set, when no snapshot is held, or when
// nothing was ever fetched. Otherwise the fetch is skipped only when the
// target is within tolerance of the last fetched coordinates and the last
// fetch is younger than the minimum interval.
func (p Policy) ShouldFetch(target models.Coordinates, bk *Bookkeeping, force, haveSnapshot bool, now time.Time) bool {
	if force || !haveSnapshot || bk == nil {
		return true
	}
	last, coords, ok := bk.LastFetch()
	if !ok {
		return true
	}

	tolerance := p.Tolerance
	if tolerance == 0 {
		tolerance = CoordinateTolerance
	}
	interval := p.MinInterval
	if interval == 0 {
		interval = MinInterval
	}

	sameLocation := math.Abs(coords.Latitude-target.Latitude) < tolerance &&
		math.Abs(coords.Longitude-target.Longitude) < tolerance
	if sameLocation && now.Sub(last) < interval {
		return false
	}
	return true
}
