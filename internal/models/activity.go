package models

// SuitabilityStatus classifies conditions for an activity.
type SuitabilityStatus string

const (
	StatusGood SuitabilityStatus = "Good"
	StatusPoor SuitabilityStatus = "Poor"
)

// Thresholds are the per-activity comfort bounds. Temperature in Celsius,
// wind in km/h.
type Thresholds struct {
	TempMinC   float64 `json:"tempMinC"`
	TempMaxC   float64 `json:"tempMaxC"`
	MaxWindKmh float64 `json:"maxWindKmh"`
}

// ActivityDefinition is one entry of the static activity catalog.
type ActivityDefinition struct {
	Name       string     `json:"name"`
	Thresholds Thresholds `json:"thresholds"`
}

// OutlookHour is the per-hour entry of a verdict's short outlook.
type OutlookHour struct {
	Time   string            `json:"time"`
	Status SuitabilityStatus `json:"status"`
}

// ActivityVerdict is a derived classification for one activity. Verdicts are
// recomputed from the latest snapshot on demand and never persisted.
type ActivityVerdict struct {
	Activity      string            `json:"activity"`
	Status        SuitabilityStatus `json:"status"`
	Description   string            `json:"description"`
	HourlyOutlook []OutlookHour     `json:"hourlyOutlook"`
}
