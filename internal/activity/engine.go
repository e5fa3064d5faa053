// Package activity classifies weather conditions against per-activity
// thresholds. All functions are pure: identical inputs produce identical
// verdicts, nothing is cached or persisted.
package activity

import (
	"fmt"
	"strings"
	"time"

	"weather-companion/internal/models"
)

// outlookHours is the window size for the short per-activity outlook,
// current hour included.
const outlookHours = 3

const hourLayout = "2006-01-02T15:04"

// DefaultCatalog is the static activity catalog. It is compiled in, not
// persisted; activities outside the catalog have no thresholds and are Good
// whenever it is not precipitating.
var DefaultCatalog = []models.ActivityDefinition{
	{Name: "Running", Thresholds: models.Thresholds{TempMinC: 5, TempMaxC: 25, MaxWindKmh: 25}},
	{Name: "Cycling", Thresholds: models.Thresholds{TempMinC: 10, TempMaxC: 30, MaxWindKmh: 20}},
	{Name: "Gardening", Thresholds: models.Thresholds{TempMinC: 10, TempMaxC: 30, MaxWindKmh: 30}},
}

// CatalogNames returns the activity names of catalog in order.
func CatalogNames(catalog []models.ActivityDefinition) []string {
	names := make([]string, len(catalog))
	for i, def := range catalog {
		names[i] = def.Name
	}
	return names
}

// Analyze evaluates every enabled activity against the snapshot's hourly
// series around now. When enabled is nil, the whole catalog is evaluated.
// An empty or exhausted hourly series yields verdicts with empty outlooks.
func Analyze(snap models.Snapshot, catalog []models.ActivityDefinition, enabled []string, now time.Time) []models.ActivityVerdict {
	if enabled == nil {
		enabled = CatalogNames(catalog)
	}

	idx := currentHourIndex(snap.Hourly, now)
	window := hourlyWindow(snap.Hourly, idx)

	verdicts := make([]models.ActivityVerdict, 0, len(enabled))
	for _, name := range enabled {
		thresholds := lookupThresholds(catalog, name)

		verdict := models.ActivityVerdict{Activity: name}
		if len(window) == 0 {
			verdict.Status = models.StatusPoor
			verdict.Description = fmt.Sprintf("Conditions aren't ideal for %s.", strings.ToLower(name))
			verdict.HourlyOutlook = []models.OutlookHour{}
			verdicts = append(verdicts, verdict)
			continue
		}

		current := window[0]
		goodNow := isGood(thresholds, current)
		if goodNow {
			verdict.Status = models.StatusGood
		} else {
			verdict.Status = models.StatusPoor
		}
		verdict.Description = describe(name, goodNow, current)

		// Each hour stands alone; the outlook is not cumulative.
		outlook := make([]models.OutlookHour, 0, len(window))
		for _, sample := range window {
			status := models.StatusPoor
			if isGood(thresholds, sample) {
				status = models.StatusGood
			}
			outlook = append(outlook, models.OutlookHour{Time: sample.Time, Status: status})
		}
		verdict.HourlyOutlook = outlook
		verdicts = append(verdicts, verdict)
	}
	return verdicts
}

// currentHourIndex aligns now with the hourly time axis by exact timestamp
// match, which stays correct across timezone and DST boundaries. When no
// entry matches (e.g. a stale snapshot), it falls back to the wall-clock
// hour clipped to the series length.
func currentHourIndex(hourly models.HourlySeries, now time.Time) int {
	if len(hourly.Time) == 0 {
		return 0
	}
	want := now.Truncate(time.Hour).Format(hourLayout)
	for i, ts := range hourly.Time {
		if ts == want {
			return i
		}
	}
	idx := now.Hour()
	if idx >= len(hourly.Time) {
		idx = len(hourly.Time) - 1
	}
	return idx
}

// hourlyWindow returns up to outlookHours samples starting at idx, clipped
// at the end of the series. Never indexes out of bounds.
func hourlyWindow(hourly models.HourlySeries, idx int) []models.HourlySample {
	window := make([]models.HourlySample, 0, outlookHours)
	for i := idx; i < idx+outlookHours; i++ {
		sample, ok := hourly.SampleAt(i)
		if !ok {
			break
		}
		window = append(window, sample)
	}
	return window
}

// lookupThresholds finds the catalog entry for name. Nil means the activity
// has no thresholds defined.
func lookupThresholds(catalog []models.ActivityDefinition, name string) *models.Thresholds {
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i].Thresholds
		}
	}
	return nil
}

// isGood evaluates one hour. Precipitation overrides thresholds; otherwise
// the hour passes when temperature is within bounds and wind below the cap.
func isGood(t *models.Thresholds, s models.HourlySample) bool {
	if IsPrecipitating(s.WeatherCode) {
		return false
	}
	if t == nil {
		return true
	}
	return s.Temperature >= t.TempMinC && s.Temperature <= t.TempMaxC && s.WindSpeed < t.MaxWindKmh
}

// describe produces the verdict text. For Poor verdicts the reasons are
// tried in a fixed priority order: rain, heat, cold, wind, then a generic
// fallback.
func describe(activity string, good bool, s models.HourlySample) string {
	name := strings.ToLower(activity)
	if good {
		return fmt.Sprintf("Great conditions for %s right now.", name)
	}
	if s.RainProbability > 50 || containsCode(drizzleRainCodes, s.WeatherCode) {
		return fmt.Sprintf("Rain expected, maybe skip %s.", name)
	}
	if s.Temperature > 30 {
		return fmt.Sprintf("Too hot for %s right now.", name)
	}
	if s.Temperature < 5 {
		return fmt.Sprintf("Too cold for %s right now.", name)
	}
	if s.WindSpeed > 20 {
		return fmt.Sprintf("Too windy for %s.", name)
	}
	return fmt.Sprintf("Conditions aren't ideal for %s.", name)
}

func containsCode(set map[int]struct{}, code int) bool {
	_, ok := set[code]
	return ok
}
