package activity

// WMO weather code groups used by the rule engine. The rain set includes
// drizzle, rain, showers and thunderstorms; the snow set covers snowfall and
// snow showers.
var rainCodes = map[int]struct{}{
	51: {}, 53: {}, 55: {},
	61: {}, 63: {}, 65: {},
	80: {}, 81: {}, 82: {},
	95: {}, 96: {}, 99: {},
}

var snowCodes = map[int]struct{}{
	71: {}, 73: {}, 75: {}, 85: {}, 86: {},
}

// drizzleRainCodes is the narrower set used when explaining a Poor verdict:
// steady drizzle or rain, without showers and storms.
var drizzleRainCodes = map[int]struct{}{
	51: {}, 53: {}, 55: {}, 61: {}, 63: {}, 65: {},
}

// IsRaining reports whether code is in the rain/shower/thunderstorm group.
func IsRaining(code int) bool {
	_, ok := rainCodes[code]
	return ok
}

// IsSnowing reports whether code is in the snow group.
func IsSnowing(code int) bool {
	_, ok := snowCodes[code]
	return ok
}

// IsPrecipitating reports whether any precipitation group matches. A
// precipitating code forces Poor for every activity regardless of thresholds.
func IsPrecipitating(code int) bool {
	return IsRaining(code) || IsSnowing(code)
}

// Label returns a short human-readable condition name for a WMO code.
func Label(code int) string {
	switch code {
	case 0:
		return "Clear Sky"
	case 1, 2, 3:
		return "Partly Cloudy"
	case 45, 48:
		return "Fog"
	case 51, 53, 55:
		return "Drizzle"
	case 61, 63, 65:
		return "Rain"
	case 71, 73, 75:
		return "Snow"
	case 80, 81, 82:
		return "Rain Showers"
	case 85, 86:
		return "Snow Showers"
	case 95, 96, 99:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
