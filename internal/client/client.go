// Package client talks to the Open-Meteo family of APIs: forecast,
// geocoding, air quality and the historical archive. All endpoints are
// keyless request/response JSON.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weather-companion/internal/circuitbreaker"
	"weather-companion/internal/models"
	"weather-companion/internal/observability"
)

// WeatherSource is the remote weather data source consumed by the service
// layer.
type WeatherSource interface {
	Forecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error)
	AirQuality(ctx context.Context, coords models.Coordinates) (models.AirQualitySnapshot, error)
	SearchPlace(ctx context.Context, query string) ([]models.Location, error)
	HistoricalRange(ctx context.Context, coords models.Coordinates, startDate, endDate string) (models.DailyHistory, error)
}

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrBadRequest      = errors.New("bad request")
)

// maxSearchResults caps geocoding responses.
const maxSearchResults = 5

// Endpoints holds the base URLs of the four Open-Meteo APIs.
type Endpoints struct {
	ForecastURL   string
	GeocodingURL  string
	AirQualityURL string
	ArchiveURL    string
}

// DefaultEndpoints are the public Open-Meteo hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ForecastURL:   "https://api.open-meteo.com/v1/forecast",
		GeocodingURL:  "https://geocoding-api.open-meteo.com/v1/search",
		AirQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		ArchiveURL:    "https://archive-api.open-meteo.com/v1/archive",
	}
}

// OpenMeteoClient implements WeatherSource with retry and backoff around
// each call.
type OpenMeteoClient struct {
	endpoints      Endpoints
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.Breaker // optional
}

// NewOpenMeteoClient creates a client with default retry settings.
func NewOpenMeteoClient(endpoints Endpoints, timeout time.Duration) *OpenMeteoClient {
	return NewOpenMeteoClientWithRetry(endpoints, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewOpenMeteoClientWithRetry creates a client with explicit retry settings.
func NewOpenMeteoClientWithRetry(endpoints Endpoints, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) *OpenMeteoClient {
	return &OpenMeteoClient{
		endpoints:      endpoints,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forecast fetches a complete snapshot (current, hourly, daily) for coords.
func (c *OpenMeteoClient) Forecast(ctx context.Context, coords models.Coordinates) (models.Snapshot, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(coords.Latitude))
	params.Set("longitude", formatCoord(coords.Longitude))
	params.Set("current_weather", "true")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode,sunrise,sunset,uv_index_max,precipitation_sum,precipitation_probability_max,daylight_duration")
	params.Set("hourly", "temperature_2m,weathercode,relative_humidity_2m,wind_speed_10m,precipitation_probability")
	params.Set("timezone", "auto")

	var snap models.Snapshot
	if err := c.getJSON(ctx, "forecast", c.endpoints.ForecastURL, params, &snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// AirQuality fetches the current air-quality readings for coords.
func (c *OpenMeteoClient) AirQuality(ctx context.Context, coords models.Coordinates) (models.AirQualitySnapshot, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(coords.Latitude))
	params.Set("longitude", formatCoord(coords.Longitude))
	params.Set("current", "european_aqi,pm2_5,pm10")
	params.Set("timezone", "auto")

	var aq models.AirQualitySnapshot
	if err := c.getJSON(ctx, "air_quality", c.endpoints.AirQualityURL, params, &aq); err != nil {
		return models.AirQualitySnapshot{}, err
	}
	return aq, nil
}

// geocodingResponse is the geocoding API envelope.
type geocodingResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// SearchPlace resolves a place name to at most five candidate locations. An
// unknown name yields an empty list, not an error.
func (c *OpenMeteoClient) SearchPlace(ctx context.Context, query string) ([]models.Location, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", fmt.Sprintf("%d", maxSearchResults))
	params.Set("language", "en")
	params.Set("format", "json")

	var resp geocodingResponse
	if err := c.getJSON(ctx, "geocoding", c.endpoints.GeocodingURL, params, &resp); err != nil {
		return nil, err
	}

	locations := make([]models.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		locations = append(locations, models.Location{
			ID:        r.ID,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Country:   r.Country,
			Admin1:    r.Admin1,
		})
		if len(locations) == maxSearchResults {
			break
		}
	}
	return locations, nil
}

// HistoricalRange fetches daily history between startDate and endDate
// (YYYY-MM-DD, inclusive).
func (c *OpenMeteoClient) HistoricalRange(ctx context.Context, coords models.Coordinates, startDate, endDate string) (models.DailyHistory, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(coords.Latitude))
	params.Set("longitude", formatCoord(coords.Longitude))
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	params.Set("timezone", "auto")

	var hist models.DailyHistory
	if err := c.getJSON(ctx, "archive", c.endpoints.ArchiveURL, params, &hist); err != nil {
		return models.DailyHistory{}, err
	}
	return hist, nil
}

// SetCircuitBreaker guards all upstream calls with b. Must be called before
// the client is shared between goroutines.
func (c *OpenMeteoClient) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// getJSON performs a GET with retry, decoding the body into dst. With a
// circuit breaker attached an open circuit fails fast, retries included.
func (c *OpenMeteoClient) getJSON(ctx context.Context, endpoint, baseURL string, params url.Values, dst any) error {
	if c.breaker != nil {
		return c.breaker.Do(func() error {
			return c.getJSONWithRetry(ctx, endpoint, baseURL, params, dst)
		})
	}
	return c.getJSONWithRetry(ctx, endpoint, baseURL, params, dst)
}

func (c *OpenMeteoClient) getJSONWithRetry(ctx context.Context, endpoint, baseURL string, params url.Values, dst any) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.FetchRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.callAPI(ctx, endpoint, baseURL, params, dst)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, endpoint, baseURL string, params url.Values, dst any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, "GET", u.String(), nil)
	if err != nil {
		observability.FetchCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.FetchCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.FetchDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.FetchCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.FetchDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}
	return false
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: HTTP 400", ErrBadRequest)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
