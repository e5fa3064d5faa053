package models

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a named place. ID 0 means device-resolved and unsaved;
// saved locations carry the geocoder's place id.
type Location struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
}

// Coordinates returns the location's coordinate pair.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Snapshot is one complete forecast response. It is replaced wholesale on
// each successful fetch, never merged incrementally.
type Snapshot struct {
	CurrentWeather CurrentWeather `json:"current_weather"`
	Hourly         HourlySeries   `json:"hourly"`
	Daily          DailySeries    `json:"daily"`
	Timezone       string         `json:"timezone,omitempty"`
	Stale          bool           `json:"stale,omitempty"` // served from stale cache after a failed fetch
}

// CurrentWeather mirrors Open-Meteo's current_weather block. Weather codes
// follow the WMO numeric convention.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	IsDay         int     `json:"is_day"`
	Time          string  `json:"time"`
}

// HourlySeries holds parallel hourly arrays. All slices share the same
// length and the same index refers to the same hour across slices.
type HourlySeries struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	WeatherCode              []int     `json:"weathercode"`
	Humidity                 []int     `json:"relative_humidity_2m"`
	WindSpeed                []float64 `json:"wind_speed_10m"`
	PrecipitationProbability []int     `json:"precipitation_probability"`
}

// DailySeries holds parallel daily arrays, index 0 = today.
type DailySeries struct {
	Time                        []string  `json:"time"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	WeatherCode                 []int     `json:"weathercode"`
	Sunrise                     []string  `json:"sunrise"`
	Sunset                      []string  `json:"sunset"`
	UVIndexMax                  []float64 `json:"uv_index_max"`
	PrecipitationSum            []float64 `json:"precipitation_sum"`
	PrecipitationProbabilityMax []int     `json:"precipitation_probability_max"`
	DaylightDuration            []float64 `json:"daylight_duration"`
}

// HourlySample is one hour's conditions lifted out of the parallel arrays.
type HourlySample struct {
	Time            string  `json:"time"`
	Temperature     float64 `json:"temperature"`
	RainProbability int     `json:"rainProbability"`
	WindSpeed       float64 `json:"windSpeed"`
	WeatherCode     int     `json:"weatherCode"`
}

// SampleAt builds an HourlySample for index i. Returns false when i is out
// of range of the time axis; missing parallel values are left zero.
func (h HourlySeries) SampleAt(i int) (HourlySample, bool) {
	if i < 0 || i >= len(h.Time) {
		return HourlySample{}, false
	}
	s := HourlySample{Time: h.Time[i]}
	if i < len(h.Temperature) {
		s.Temperature = h.Temperature[i]
	}
	if i < len(h.PrecipitationProbability) {
		s.RainProbability = h.PrecipitationProbability[i]
	}
	if i < len(h.WindSpeed) {
		s.WindSpeed = h.WindSpeed[i]
	}
	if i < len(h.WeatherCode) {
		s.WeatherCode = h.WeatherCode[i]
	}
	return s, true
}

// AirQualitySnapshot mirrors Open-Meteo's air-quality current block.
type AirQualitySnapshot struct {
	Current AirQualityCurrent `json:"current"`
}

// AirQualityCurrent holds the instantaneous air-quality readings.
type AirQualityCurrent struct {
	Time        string  `json:"time"`
	EuropeanAQI float64 `json:"european_aqi"`
	PM25        float64 `json:"pm2_5"`
	PM10        float64 `json:"pm10"`
}

// DailyHistory is the daily subset returned by the historical archive API.
type DailyHistory struct {
	Daily struct {
		Time           []string  `json:"time"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weathercode"`
	} `json:"daily"`
}
