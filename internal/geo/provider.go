// Package geo abstracts the device location capability: permission,
// current coordinates and reverse geocoding.
package geo

import (
	"context"
	"errors"

	"weather-companion/internal/models"
)

// ErrLocationUnavailable is returned when permission is denied or the
// position lookup fails. The caller skips the fetch and reports "no
// location"; no automatic retry.
var ErrLocationUnavailable = errors.New("location unavailable")

// Provider resolves the device's position.
type Provider interface {
	// RequestPermission asks for location access. Returns
	// ErrLocationUnavailable when denied.
	RequestPermission(ctx context.Context) error
	// CurrentCoordinates returns the device position.
	CurrentCoordinates(ctx context.Context) (models.Coordinates, error)
	// ReverseGeocode resolves coordinates to a best-effort place name. An
	// empty name with nil error is a valid outcome.
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error)
}

// StaticProvider serves a fixed position configured at startup. Used for
// server deployments where no positioning hardware exists.
type StaticProvider struct {
	Coords   models.Coordinates
	Name     string
	Enabled  bool
	Geocoder *NominatimGeocoder // optional; overrides Name when set
}

// RequestPermission reports availability of the configured position.
func (p *StaticProvider) RequestPermission(ctx context.Context) error {
	if !p.Enabled {
		return ErrLocationUnavailable
	}
	return nil
}

// CurrentCoordinates returns the configured position.
func (p *StaticProvider) CurrentCoordinates(ctx context.Context) (models.Coordinates, error) {
	if !p.Enabled {
		return models.Coordinates{}, ErrLocationUnavailable
	}
	return p.Coords, nil
}

// ReverseGeocode returns the configured name, or asks the geocoder when one
// is attached.
func (p *StaticProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	if p.Geocoder != nil {
		name, err := p.Geocoder.ReverseGeocode(ctx, coords)
		if err == nil && name != "" {
			return name, nil
		}
	}
	return p.Name, nil
}
