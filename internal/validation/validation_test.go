package validation

import (
	"errors"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		want    string
	}{
		{"empty", "", ErrQueryEmpty, ""},
		{"whitespace only", "   ", ErrQueryEmpty, ""},
		{"too short", "a", ErrQueryTooShort, ""},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ErrQueryTooLong, ""},
		{"script injection", "<script>", ErrQueryInvalidChars, ""},
		{"simple city", "Lisbon", nil, "Lisbon"},
		{"trimmed", "  Porto  ", nil, "Porto"},
		{"comma and hyphen", "Saint-Denis, France", nil, "Saint-Denis, France"},
		{"apostrophe", "L'Aquila", nil, "L'Aquila"},
		{"unicode", "São Paulo", nil, "São Paulo"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateQuery(tc.input, 2, 100)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon string
		wantErr  error
	}{
		{"valid", "38.7223", "-9.1393", nil},
		{"poles", "-90", "180", nil},
		{"missing lat", "", "-9.1", ErrCoordinateMissing},
		{"missing lon", "38.7", "", ErrCoordinateMissing},
		{"not a number", "north", "-9.1", ErrCoordinateInvalid},
		{"latitude too high", "90.01", "0", ErrCoordinateInvalid},
		{"longitude too low", "0", "-180.5", ErrCoordinateInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coords, err := ParseCoordinates(tc.lat, tc.lon)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && (coords.Latitude == 0 && coords.Longitude == 0) && tc.name == "valid" {
				t.Error("coordinates not populated")
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	if _, err := ValidateDate("2024-03-01"); err != nil {
		t.Errorf("ValidateDate(valid) error = %v", err)
	}
	for _, bad := range []string{"", "2024/03/01", "03-01-2024", "2024-3-1", "2024-03-01T00"} {
		if _, err := ValidateDate(bad); err == nil {
			t.Errorf("ValidateDate(%q) = nil, want error", bad)
		}
	}
}
