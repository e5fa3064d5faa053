package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"weather-companion/internal/models"
)

// ErrQueryEmpty is returned when a search query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooShort is returned when query length is below the minimum.
var ErrQueryTooShort = errors.New("query too short")

// ErrQueryTooLong is returned when query length exceeds the maximum.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrCoordinateMissing is returned when a lat or lon parameter is absent.
var ErrCoordinateMissing = errors.New("lat and lon are required")

// ErrCoordinateInvalid is returned when a coordinate fails to parse or is out of range.
var ErrCoordinateInvalid = errors.New("coordinate out of range")

// ValidateQuery trims the input, enforces length bounds (minLen, maxLen in
// runes), and restricts to allowed characters: letters (Unicode), digits,
// space, comma, hyphen, apostrophe, period. Returns the trimmed string or an
// error suitable for 400 INVALID_QUERY responses.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}

// ParseCoordinates parses lat/lon request parameters and enforces the valid
// geographic ranges: latitude in [-90, 90], longitude in [-180, 180].
func ParseCoordinates(latParam, lonParam string) (models.Coordinates, error) {
	if strings.TrimSpace(latParam) == "" || strings.TrimSpace(lonParam) == "" {
		return models.Coordinates{}, ErrCoordinateMissing
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latParam), 64)
	if err != nil {
		return models.Coordinates{}, ErrCoordinateInvalid
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonParam), 64)
	if err != nil {
		return models.Coordinates{}, ErrCoordinateInvalid
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.Coordinates{}, ErrCoordinateInvalid
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// ValidateDate checks an ISO date parameter (YYYY-MM-DD) without resolving it
// to a time.Time; the upstream API does its own calendar validation.
func ValidateDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return "", errors.New("date must be YYYY-MM-DD")
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return "", errors.New("date must be YYYY-MM-DD")
		}
	}
	return s, nil
}
