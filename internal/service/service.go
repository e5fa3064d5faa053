// Package service orchestrates forecast retrieval: the refresh policy
// decides fetch necessity, fetches are coalesced and generation-checked, and
// results land in the session store, the bookkeeping and the snapshot cache
// together.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"weather-companion/internal/cache"
	"weather-companion/internal/client"
	"weather-companion/internal/models"
	"weather-companion/internal/observability"
	"weather-companion/internal/refresh"
	"weather-companion/internal/session"
)

// Weather is the forecast orchestrator.
type Weather struct {
	source      client.WeatherSource
	store       *session.Store
	cache       cache.SnapshotCache
	policy      refresh.Policy
	bookkeeping refresh.Bookkeeping
	generation  refresh.Generation
	coalescer   *snapshotCoalescer
	cacheTTL    time.Duration
	staleMaxAge time.Duration // 0 disables stale fallback
}

// NewWeather wires the orchestrator. coalesceTimeout bounds how long a
// caller waits on another caller's in-flight fetch; 0 disables coalescing.
func NewWeather(source client.WeatherSource, store *session.Store, snapCache cache.SnapshotCache, policy refresh.Policy, cacheTTL, staleMaxAge, coalesceTimeout time.Duration) *Weather {
	var coalescer *snapshotCoalescer
	if coalesceTimeout > 0 {
		coalescer = newSnapshotCoalescer(coalesceTimeout)
	}
	return &Weather{
		source:      source,
		store:       store,
		cache:       snapCache,
		policy:      policy,
		coalescer:   coalescer,
		cacheTTL:    cacheTTL,
		staleMaxAge: staleMaxAge,
	}
}

// loggerFromContext extracts a request-scoped zap.Logger if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Refresh returns the snapshot for coords, fetching remotely only when the
// refresh policy requires it. On upstream failure a stale cached snapshot is
// served when available; the held snapshot and bookkeeping are never touched
// by a failed fetch.
func (w *Weather) Refresh(ctx context.Context, coords models.Coordinates, force bool) (models.Snapshot, error) {
	logger := loggerFromContext(ctx)

	_, haveSnapshot := w.store.Snapshot()
	if !w.policy.ShouldFetch(coords, &w.bookkeeping, force, haveSnapshot, time.Now()) {
		observability.RefreshSkippedTotal.Inc()
		if logger != nil {
			logger.Debug("refresh skipped by policy", zap.Float64("lat", coords.Latitude), zap.Float64("lon", coords.Longitude))
		}
		snap, _ := w.store.Snapshot()
		return snap, nil
	}

	id := w.generation.Next()
	key := cache.CoordinateKey(coords)

	var snap models.Snapshot
	var err error
	if w.coalescer != nil {
		snap, err = w.coalescer.GetOrDo(ctx, key, func() (models.Snapshot, error) {
			return w.source.Forecast(ctx, coords)
		})
	} else {
		snap, err = w.source.Forecast(ctx, coords)
	}
	if err != nil {
		if w.staleMaxAge > 0 {
			stale, ok, staleErr := w.cache.GetStale(ctx, key, w.staleMaxAge)
			if staleErr == nil && ok {
				stale.Stale = true
				observability.CacheHitsTotal.WithLabelValues("stale").Inc()
				observability.StaleServesTotal.Inc()
				if logger != nil {
					logger.Info("serving stale snapshot", zap.String("key", key))
				}
				return stale, nil
			}
		}
		return models.Snapshot{}, fmt.Errorf("fetch forecast for %s: %w", key, err)
	}

	// Only the most recently requested data may be applied; a fetch that
	// lost the race is discarded in favor of whatever the winner stored.
	if !w.generation.IsLatest(id) {
		observability.StaleFetchDiscardedTotal.Inc()
		if logger != nil {
			logger.Debug("discarding superseded fetch", zap.String("key", key))
		}
		if latest, ok := w.store.Snapshot(); ok {
			return latest, nil
		}
		return snap, nil
	}

	// Snapshot replacement and bookkeeping move together.
	w.store.SetSnapshot(snap)
	w.bookkeeping.MarkFetched(coords, time.Now())

	if setErr := w.cache.Set(ctx, key, snap, w.cacheTTL); setErr != nil {
		if logger != nil {
			logger.Warn("snapshot cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return snap, nil
}

// RefreshAirQuality fetches and stores the current air quality for coords.
func (w *Weather) RefreshAirQuality(ctx context.Context, coords models.Coordinates) (models.AirQualitySnapshot, error) {
	aq, err := w.source.AirQuality(ctx, coords)
	if err != nil {
		// Held value stays authoritative, same as the forecast path.
		if held, ok := w.store.AirQuality(); ok {
			return held, nil
		}
		return models.AirQualitySnapshot{}, fmt.Errorf("fetch air quality: %w", err)
	}
	w.store.SetAirQuality(aq)
	return aq, nil
}

// Search resolves a place name to candidate locations.
func (w *Weather) Search(ctx context.Context, query string) ([]models.Location, error) {
	locations, err := w.source.SearchPlace(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return locations, nil
}

// History fetches the daily history between startDate and endDate.
func (w *Weather) History(ctx context.Context, coords models.Coordinates, startDate, endDate string) (models.DailyHistory, error) {
	hist, err := w.source.HistoricalRange(ctx, coords, startDate, endDate)
	if err != nil {
		return models.DailyHistory{}, fmt.Errorf("fetch history: %w", err)
	}
	return hist, nil
}

// Store exposes the session store for handlers.
func (w *Weather) Store() *session.Store {
	return w.store
}
