// Package session holds the in-memory application state: location, fetched
// snapshots, units, theme, layout and saved locations. Every mutation
// updates memory synchronously and then persists to durable storage
// fire-and-forget; the in-memory state is authoritative for the running
// session and storage is a best-effort write-behind cache.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"weather-companion/internal/models"
	"weather-companion/internal/observability"
	"weather-companion/internal/storage"
)

// Storage keys. Kept stable so existing databases keep loading.
const (
	KeyLocation          = "weather_location"
	KeyWeatherData       = "weather_data"
	KeyAirQuality        = "air_quality_data"
	KeySavedLocations    = "saved_locations"
	KeyLayoutOrder       = "layout_order"
	KeyHiddenSections    = "layout_preferences"
	KeyUnits             = "weather_units"
	KeyTheme             = "weather_theme"
	KeyEnabledActivities = "enabled_activities"
)

const persistTimeout = 5 * time.Second

// DefaultLayoutOrder lists the home-screen sections in their default order.
var DefaultLayoutOrder = []string{"current", "hourly", "daily", "activities", "airquality", "moon", "map"}

// Store is the single source of truth for preferences and fetched state.
type Store struct {
	mu sync.RWMutex

	location          *models.Location
	snapshot          *models.Snapshot
	airQuality        *models.AirQualitySnapshot
	units             string
	theme             string
	layoutOrder       []string
	hiddenSections    map[string]bool
	savedLocations    []models.Location
	enabledActivities []string

	kv     storage.KV
	logger *zap.Logger
}

// New creates a Store with compiled-in defaults backed by kv.
func New(kv storage.KV, logger *zap.Logger, defaultActivities []string) *Store {
	return &Store{
		units:             "celsius",
		theme:             "dark",
		layoutOrder:       append([]string(nil), DefaultLayoutOrder...),
		hiddenSections:    make(map[string]bool),
		enabledActivities: append([]string(nil), defaultActivities...),
		kv:                kv,
		logger:            logger,
	}
}

// Load performs one best-effort bulk read of every known key. A key that is
// absent or fails to parse keeps its compiled-in default; this is never an
// error.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loadKey(ctx, s, KeyLocation, &s.location)
	loadKey(ctx, s, KeyWeatherData, &s.snapshot)
	loadKey(ctx, s, KeyAirQuality, &s.airQuality)
	loadKey(ctx, s, KeySavedLocations, &s.savedLocations)
	loadKey(ctx, s, KeyLayoutOrder, &s.layoutOrder)
	loadKey(ctx, s, KeyHiddenSections, &s.hiddenSections)
	loadKey(ctx, s, KeyUnits, &s.units)
	loadKey(ctx, s, KeyTheme, &s.theme)
	loadKey(ctx, s, KeyEnabledActivities, &s.enabledActivities)
}

// loadKey reads one key into dst, leaving dst untouched on absence or parse
// failure.
func loadKey[T any](ctx context.Context, s *Store, key string, dst *T) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("preference load failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("preference unparseable, keeping default", zap.String("key", key), zap.Error(err))
		return
	}
	*dst = v
}

// persist serializes value and writes it to storage in the background. A
// failure is logged and counted, never surfaced or rolled back.
func (s *Store) persist(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("preference marshal failed", zap.String("key", key), zap.Error(err))
		observability.PersistFailuresTotal.WithLabelValues(key).Inc()
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.kv.Set(ctx, key, raw); err != nil {
			s.logger.Warn("preference persist failed", zap.String("key", key), zap.Error(err))
			observability.PersistFailuresTotal.WithLabelValues(key).Inc()
		}
	}()
}

// Location returns the active location, nil when none is selected.
func (s *Store) Location() *models.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// SetLocation selects the active location.
func (s *Store) SetLocation(loc models.Location) {
	s.mu.Lock()
	s.location = &loc
	s.mu.Unlock()
	s.persist(KeyLocation, loc)
}

// Snapshot returns the latest fetched snapshot and whether one is held.
func (s *Store) Snapshot() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return models.Snapshot{}, false
	}
	return *s.snapshot, true
}

// SetSnapshot replaces the held snapshot wholesale.
func (s *Store) SetSnapshot(snap models.Snapshot) {
	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()
	s.persist(KeyWeatherData, snap)
}

// AirQuality returns the latest air-quality snapshot and whether one is held.
func (s *Store) AirQuality() (models.AirQualitySnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.airQuality == nil {
		return models.AirQualitySnapshot{}, false
	}
	return *s.airQuality, true
}

// SetAirQuality replaces the held air-quality snapshot.
func (s *Store) SetAirQuality(aq models.AirQualitySnapshot) {
	s.mu.Lock()
	s.airQuality = &aq
	s.mu.Unlock()
	s.persist(KeyAirQuality, aq)
}

// Units returns the active unit system ("celsius" or "fahrenheit").
func (s *Store) Units() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units
}

// SetUnits sets the unit system.
func (s *Store) SetUnits(units string) {
	s.mu.Lock()
	s.units = units
	s.mu.Unlock()
	s.persist(KeyUnits, units)
}

// Theme returns the active theme ("dark" or "light").
func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme sets the theme.
func (s *Store) SetTheme(theme string) {
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	s.persist(KeyTheme, theme)
}

// LayoutOrder returns the home-screen section order.
func (s *Store) LayoutOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.layoutOrder...)
}

// SetLayoutOrder replaces the section order.
func (s *Store) SetLayoutOrder(order []string) {
	ordered := append([]string(nil), order...)
	s.mu.Lock()
	s.layoutOrder = ordered
	s.mu.Unlock()
	s.persist(KeyLayoutOrder, ordered)
}

// SectionHidden reports whether a section is hidden.
func (s *Store) SectionHidden(section string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hiddenSections[section]
}

// SetSectionHidden hides or shows a section.
func (s *Store) SetSectionHidden(section string, hidden bool) {
	s.mu.Lock()
	if hidden {
		s.hiddenSections[section] = true
	} else {
		delete(s.hiddenSections, section)
	}
	snapshot := make(map[string]bool, len(s.hiddenSections))
	for k, v := range s.hiddenSections {
		snapshot[k] = v
	}
	s.mu.Unlock()
	s.persist(KeyHiddenSections, snapshot)
}

// SavedLocations returns the saved-locations list in insertion order.
func (s *Store) SavedLocations() []models.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Location(nil), s.savedLocations...)
}

// AddSavedLocation appends loc unless a location with the same id is already
// saved. Returns whether the list changed.
func (s *Store) AddSavedLocation(loc models.Location) bool {
	s.mu.Lock()
	for _, existing := range s.savedLocations {
		if existing.ID == loc.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.savedLocations = append(s.savedLocations, loc)
	list := append([]models.Location(nil), s.savedLocations...)
	s.mu.Unlock()
	s.persist(KeySavedLocations, list)
	return true
}

// RemoveSavedLocation removes the location with the given id. Removing an
// absent id leaves the list unchanged.
func (s *Store) RemoveSavedLocation(id int64) bool {
	s.mu.Lock()
	kept := s.savedLocations[:0]
	removed := false
	for _, loc := range s.savedLocations {
		if loc.ID == id {
			removed = true
			continue
		}
		kept = append(kept, loc)
	}
	s.savedLocations = kept
	var list []models.Location
	if removed {
		list = append([]models.Location(nil), s.savedLocations...)
	}
	s.mu.Unlock()
	if removed {
		s.persist(KeySavedLocations, list)
	}
	return removed
}

// EnabledActivities returns the enabled activity names.
func (s *Store) EnabledActivities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.enabledActivities...)
}

// SetEnabledActivities replaces the enabled activity set.
func (s *Store) SetEnabledActivities(names []string) {
	list := append([]string(nil), names...)
	s.mu.Lock()
	s.enabledActivities = list
	s.mu.Unlock()
	s.persist(KeyEnabledActivities, list)
}

// Preferences is the full preference view returned by the API.
type Preferences struct {
	Location          *models.Location  `json:"location,omitempty"`
	Units             string            `json:"units"`
	Theme             string            `json:"theme"`
	LayoutOrder       []string          `json:"layoutOrder"`
	HiddenSections    map[string]bool   `json:"hiddenSections"`
	SavedLocations    []models.Location `json:"savedLocations"`
	EnabledActivities []string          `json:"enabledActivities"`
}

// View returns a consistent copy of all preferences.
func (s *Store) View() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hidden := make(map[string]bool, len(s.hiddenSections))
	for k, v := range s.hiddenSections {
		hidden[k] = v
	}
	var loc *models.Location
	if s.location != nil {
		l := *s.location
		loc = &l
	}
	return Preferences{
		Location:          loc,
		Units:             s.units,
		Theme:             s.theme,
		LayoutOrder:       append([]string(nil), s.layoutOrder...),
		HiddenSections:    hidden,
		SavedLocations:    append([]models.Location(nil), s.savedLocations...),
		EnabledActivities: append([]string(nil), s.enabledActivities...),
	}
}
