package activity

import "weather-companion/internal/models"

// Tip produces one overall suggestion from the current conditions alone.
// Rules are tried in a fixed cascade and only the first match fires:
// precipitation, snow, storm, heat, cold, cool, wind, clear, fallback.
func Tip(current models.CurrentWeather) string {
	code := current.WeatherCode

	if IsRaining(code) && code < 95 {
		return "Don't forget your umbrella!"
	}
	if IsSnowing(code) {
		return "Bundle up, it's snowing!"
	}
	if code >= 95 {
		return "Stay safe, storm approaching!"
	}

	if current.Temperature > 30 {
		return "Stay hydrated, it's hot out there!"
	}
	if current.Temperature < 5 {
		return "Wear a warm coat today!"
	}
	if current.Temperature < 15 {
		return "A light jacket might be needed."
	}

	if current.WindSpeed > 20 {
		return "It's quite windy, hold onto your hat!"
	}

	if code <= 3 {
		return "Enjoy the beautiful sunshine!"
	}

	return "Have a wonderful day!"
}
