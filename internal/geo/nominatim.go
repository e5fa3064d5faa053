package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"weather-companion/internal/models"
)

// NominatimGeocoder resolves coordinates to place names via the OpenStreetMap
// Nominatim API. Nominatim requires an identifying User-Agent.
type NominatimGeocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// NewNominatimGeocoder creates a geocoder against the public Nominatim host.
func NewNominatimGeocoder(userAgent string, timeout time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		BaseURL:   "https://nominatim.openstreetmap.org",
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

// reverseResponse is the subset of the Nominatim reverse payload we read.
type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		Country string `json:"country"`
	} `json:"address"`
	DisplayName string `json:"display_name"`
}

// ReverseGeocode returns a best-effort place name for coords. Failures map
// to ErrLocationUnavailable so callers treat them like any position failure.
func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", coords.Latitude))
	params.Set("lon", fmt.Sprintf("%.6f", coords.Longitude))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", g.BaseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrLocationUnavailable, err)
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrLocationUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrLocationUnavailable, err)
	}
	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrLocationUnavailable, err)
	}

	for _, name := range []string{rr.Address.City, rr.Address.Town, rr.Address.Village, rr.Address.County} {
		if name != "" {
			return name, nil
		}
	}
	return rr.DisplayName, nil
}
