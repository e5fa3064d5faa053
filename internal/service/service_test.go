package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"weather-companion/internal/cache"
	"weather-companion/internal/models"
	"weather-companion/internal/refresh"
	"weather-companion/internal/session"
	"weather-companion/internal/storage"
)

type mockSource struct {
	mu        sync.Mutex
	calls     atomic.Int32
	forecast  models.Snapshot
	err       error
	block     chan struct{} // when set, Forecast blocks until closed
	airErr    error
	locations []models.Location
}

func (m *mockSource) Forecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forecast, m.err
}

func (m *mockSource) AirQuality(ctx context.Context, coords models.Coordinates) (models.AirQualitySnapshot, error) {
	if m.airErr != nil {
		return models.AirQualitySnapshot{}, m.airErr
	}
	return models.AirQualitySnapshot{Current: models.AirQualityCurrent{EuropeanAQI: 42}}, nil
}

func (m *mockSource) SearchPlace(ctx context.Context, query string) ([]models.Location, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.locations, nil
}

func (m *mockSource) HistoricalRange(ctx context.Context, coords models.Coordinates, start, end string) (models.DailyHistory, error) {
	return models.DailyHistory{}, m.err
}

func (m *mockSource) setForecast(snap models.Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecast = snap
	m.err = err
}

func newTestWeather(src *mockSource, cacheTTL, staleMaxAge, coalesceTimeout time.Duration) *Weather {
	store := session.New(storage.NewInMemoryKV(), zap.NewNop(), nil)
	return NewWeather(src, store, cache.NewInMemorySnapshotCache(), refresh.Policy{}, cacheTTL, staleMaxAge, coalesceTimeout)
}

var lisbon = models.Coordinates{Latitude: 38.7223, Longitude: -9.1393}

// TestRefresh_PolicySkip verifies a second refresh within the throttle
// window reuses the held snapshot without a network call.
func TestRefresh_PolicySkip(t *testing.T) {
	src := &mockSource{forecast: models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 17}}}
	w := newTestWeather(src, 5*time.Minute, 0, 0)
	ctx := context.Background()

	first, err := w.Refresh(ctx, lisbon, false)
	if err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls.Load())
	}

	src.setForecast(models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 99}}, nil)
	second, err := w.Refresh(ctx, lisbon, false)
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d after throttled refresh, want 1", src.calls.Load())
	}
	if second.CurrentWeather.Temperature != first.CurrentWeather.Temperature {
		t.Errorf("throttled refresh returned %v, want held %v", second.CurrentWeather.Temperature, first.CurrentWeather.Temperature)
	}
}

// TestRefresh_ForceFetches verifies force bypasses the throttle.
func TestRefresh_ForceFetches(t *testing.T) {
	src := &mockSource{forecast: models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 17}}}
	w := newTestWeather(src, 5*time.Minute, 0, 0)
	ctx := context.Background()

	if _, err := w.Refresh(ctx, lisbon, false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	src.setForecast(models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 23}}, nil)

	got, err := w.Refresh(ctx, lisbon, true)
	if err != nil {
		t.Fatalf("forced Refresh() error = %v", err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("source calls = %d, want 2", src.calls.Load())
	}
	if got.CurrentWeather.Temperature != 23 {
		t.Errorf("Temperature = %v, want 23", got.CurrentWeather.Temperature)
	}
}

// TestRefresh_LocationChangeFetches verifies moving beyond the coordinate
// tolerance triggers a fetch even inside the time window.
func TestRefresh_LocationChangeFetches(t *testing.T) {
	src := &mockSource{forecast: models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 17}}}
	w := newTestWeather(src, 5*time.Minute, 0, 0)
	ctx := context.Background()

	if _, err := w.Refresh(ctx, lisbon, false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	porto := models.Coordinates{Latitude: 41.1579, Longitude: -8.6291}
	if _, err := w.Refresh(ctx, porto, false); err != nil {
		t.Fatalf("Refresh(new location) error = %v", err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("source calls = %d, want 2", src.calls.Load())
	}
}

// TestRefresh_FailureServesStale verifies a failed fetch falls back to the
// stale cached snapshot, marked Stale, and the held state is preserved.
func TestRefresh_FailureServesStale(t *testing.T) {
	src := &mockSource{forecast: models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 17}}}
	w := newTestWeather(src, time.Millisecond, time.Hour, 0)
	ctx := context.Background()

	if _, err := w.Refresh(ctx, lisbon, false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond) // let the cache entry expire

	src.setForecast(models.Snapshot{}, errors.New("upstream down"))
	got, err := w.Refresh(ctx, lisbon, true)
	if err != nil {
		t.Fatalf("Refresh() error = %v, want stale fallback", err)
	}
	if !got.Stale {
		t.Error("fallback snapshot not marked stale")
	}
	if got.CurrentWeather.Temperature != 17 {
		t.Errorf("Temperature = %v, want cached 17", got.CurrentWeather.Temperature)
	}

	held, ok := w.store.Snapshot()
	if !ok || held.Stale || held.CurrentWeather.Temperature != 17 {
		t.Errorf("held snapshot disturbed by failed fetch: %+v ok=%v", held, ok)
	}
}

// TestRefresh_FailureNoStale verifies the error surfaces when no fallback
// exists.
func TestRefresh_FailureNoStale(t *testing.T) {
	src := &mockSource{err: errors.New("upstream down")}
	w := newTestWeather(src, time.Minute, time.Hour, 0)

	if _, err := w.Refresh(context.Background(), lisbon, false); err == nil {
		t.Fatal("Refresh() error = nil, want upstream failure")
	}
}

// TestRefresh_FailureLeavesBookkeeping verifies a failed fetch does not
// throttle the next attempt.
func TestRefresh_FailureLeavesBookkeeping(t *testing.T) {
	src := &mockSource{err: errors.New("upstream down")}
	w := newTestWeather(src, time.Minute, 0, 0)
	ctx := context.Background()

	if _, err := w.Refresh(ctx, lisbon, false); err == nil {
		t.Fatal("Refresh() should fail")
	}
	src.setForecast(models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 11}}, nil)

	got, err := w.Refresh(ctx, lisbon, false)
	if err != nil {
		t.Fatalf("retry Refresh() error = %v, want immediate retry (no throttle)", err)
	}
	if got.CurrentWeather.Temperature != 11 {
		t.Errorf("Temperature = %v, want 11", got.CurrentWeather.Temperature)
	}
	if src.calls.Load() != 2 {
		t.Errorf("source calls = %d, want 2", src.calls.Load())
	}
}

// TestRefresh_CoalescesConcurrentFetches verifies two concurrent forced
// refreshes for the same key share one upstream call.
func TestRefresh_CoalescesConcurrentFetches(t *testing.T) {
	block := make(chan struct{})
	src := &mockSource{
		forecast: models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 17}},
		block:    block,
	}
	w := newTestWeather(src, time.Minute, 0, 2*time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = w.Refresh(ctx, lisbon, true)
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // both callers join the in-flight fetch
	close(block)
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("caller %d error = %v", i, err)
		}
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1 (coalesced)", src.calls.Load())
	}
}

// TestRefreshAirQuality_FailureKeepsHeld verifies the held air-quality value
// survives an upstream failure.
func TestRefreshAirQuality_FailureKeepsHeld(t *testing.T) {
	src := &mockSource{}
	w := newTestWeather(src, time.Minute, 0, 0)
	ctx := context.Background()

	first, err := w.RefreshAirQuality(ctx, lisbon)
	if err != nil {
		t.Fatalf("RefreshAirQuality() error = %v", err)
	}
	if first.Current.EuropeanAQI != 42 {
		t.Fatalf("EuropeanAQI = %v, want 42", first.Current.EuropeanAQI)
	}

	src.airErr = errors.New("upstream down")
	held, err := w.RefreshAirQuality(ctx, lisbon)
	if err != nil {
		t.Fatalf("RefreshAirQuality() error = %v, want held value", err)
	}
	if held.Current.EuropeanAQI != 42 {
		t.Errorf("EuropeanAQI = %v, want held 42", held.Current.EuropeanAQI)
	}
}

// TestSearch_ErrorWrapped verifies search failures carry the query context.
func TestSearch_ErrorWrapped(t *testing.T) {
	src := &mockSource{err: errors.New("upstream down")}
	w := newTestWeather(src, time.Minute, 0, 0)

	if _, err := w.Search(context.Background(), "lisbon"); err == nil {
		t.Fatal("Search() error = nil, want failure")
	}
}
