// Package http exposes the companion API: forecast, air quality, place
// search, activity advice and the preference endpoints.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"weather-companion/internal/activity"
	"weather-companion/internal/geo"
	"weather-companion/internal/models"
	"weather-companion/internal/moon"
	"weather-companion/internal/service"
	"weather-companion/internal/validation"
)

const (
	queryMinLength = 2
	queryMaxLength = 100
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather  *service.Weather
	location geo.Provider
	catalog  []models.ActivityDefinition
	logger   *zap.Logger
	// StoragePing and CachePing, when set, are called by the health handler
	// to check backend reachability.
	StoragePing func() error
	CachePing   func() error
}

// NewHandler returns a new Handler.
func NewHandler(weather *service.Weather, location geo.Provider, catalog []models.ActivityDefinition, logger *zap.Logger) *Handler {
	if catalog == nil {
		catalog = activity.DefaultCatalog
	}
	return &Handler{
		weather:  weather,
		location: location,
		catalog:  catalog,
		logger:   logger,
	}
}

// GetForecast handles GET /forecast?lat=&lon=[&force=true].
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	coords, ok := h.coordsParam(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	snap, err := h.weather.Refresh(r.Context(), coords, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetCurrentForecast handles GET /forecast/current. It resolves the device
// location through the location provider, remembers it as the active
// location, and refreshes the forecast for it.
func (h *Handler) GetCurrentForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.location.RequestPermission(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE", "device location is not available")
		return
	}
	coords, err := h.location.CurrentCoordinates(ctx)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE", "device location is not available")
		return
	}

	loc := models.Location{Latitude: coords.Latitude, Longitude: coords.Longitude}
	if name, err := h.location.ReverseGeocode(ctx, coords); err == nil {
		loc.Name = name
	} else if logger := requestLogger(r); logger != nil {
		logger.Debug("reverse geocode failed", zap.Error(err))
	}
	h.weather.Store().SetLocation(loc)

	force := r.URL.Query().Get("force") == "true"
	snap, err := h.weather.Refresh(ctx, coords, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": loc,
		"forecast": snap,
	})
}

// GetAirQuality handles GET /airquality?lat=&lon=.
func (h *Handler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	coords, ok := h.coordsParam(w, r)
	if !ok {
		return
	}
	aq, err := h.weather.RefreshAirQuality(r.Context(), coords)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aq)
}

// SearchLocations handles GET /search?q=.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("q"), queryMinLength, queryMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	locations, err := h.weather.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": locations})
}

// GetHistory handles GET /history?lat=&lon=&start=&end=.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	coords, ok := h.coordsParam(w, r)
	if !ok {
		return
	}
	start, err := validation.ValidateDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	end, err := validation.ValidateDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	hist, err := h.weather.History(r.Context(), coords, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// GetActivities handles GET /activities?lat=&lon=[&force=true]. Only the
// activities enabled in the preferences are analyzed.
func (h *Handler) GetActivities(w http.ResponseWriter, r *http.Request) {
	coords, ok := h.coordsParam(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	snap, err := h.weather.Refresh(r.Context(), coords, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	enabled := h.weather.Store().EnabledActivities()
	verdicts := activity.Analyze(snap, h.catalog, enabled, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"stale":      snap.Stale,
		"activities": verdicts,
	})
}

// GetTip handles GET /tip?lat=&lon=. Returns the one-line advice for the
// current conditions.
func (h *Handler) GetTip(w http.ResponseWriter, r *http.Request) {
	coords, ok := h.coordsParam(w, r)
	if !ok {
		return
	}
	snap, err := h.weather.Refresh(r.Context(), coords, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tip":   activity.Tip(snap.CurrentWeather),
		"stale": snap.Stale,
	})
}

// GetMoon handles GET /moon[?date=YYYY-MM-DD]. Defaults to now.
func (h *Handler) GetMoon(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
			return
		}
		at = parsed
	}
	writeJSON(w, http.StatusOK, moon.At(at))
}

// GetPreferences handles GET /preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.weather.Store().View())
}

// PutUnits handles PUT /preferences/units with body {"units": "celsius"}.
func (h *Handler) PutUnits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Units string `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if body.Units != "celsius" && body.Units != "fahrenheit" {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNITS", "units must be celsius or fahrenheit")
		return
	}
	h.weather.Store().SetUnits(body.Units)
	writeJSON(w, http.StatusOK, h.weather.Store().View())
}

// PutTheme handles PUT /preferences/theme with body {"theme": "dark"}.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if body.Theme != "dark" && body.Theme != "light" {
		writeError(w, r, http.StatusBadRequest, "INVALID_THEME", "theme must be dark or light")
		return
	}
	h.weather.Store().SetTheme(body.Theme)
	writeJSON(w, http.StatusOK, h.weather.Store().View())
}

// PutLayout handles PUT /preferences/layout with body
// {"order": [...], "hidden": {"section": true}}. Either field may be omitted.
func (h *Handler) PutLayout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order  []string        `json:"order"`
		Hidden map[string]bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	store := h.weather.Store()
	if body.Order != nil {
		store.SetLayoutOrder(body.Order)
	}
	for section, hidden := range body.Hidden {
		store.SetSectionHidden(section, hidden)
	}
	writeJSON(w, http.StatusOK, store.View())
}

// PutActivities handles PUT /preferences/activities with body
// {"activities": ["Running"]}. Unknown names are rejected.
func (h *Handler) PutActivities(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Activities []string `json:"activities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	known := make(map[string]bool, len(h.catalog))
	for _, def := range h.catalog {
		known[def.Name] = true
	}
	for _, name := range body.Activities {
		if !known[name] {
			writeError(w, r, http.StatusBadRequest, "UNKNOWN_ACTIVITY", "unknown activity: "+name)
			return
		}
	}
	h.weather.Store().SetEnabledActivities(body.Activities)
	writeJSON(w, http.StatusOK, h.weather.Store().View())
}

// PostLocation handles POST /locations: save a location to the list.
func (h *Handler) PostLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if loc.ID == 0 || loc.Name == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "id and name are required")
		return
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "coordinates out of range")
		return
	}
	if !h.weather.Store().AddSavedLocation(loc) {
		writeError(w, r, http.StatusConflict, "DUPLICATE_LOCATION", "location already saved")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"savedLocations": h.weather.Store().SavedLocations(),
	})
}

// DeleteLocation handles DELETE /locations/{id}.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "id must be an integer")
		return
	}
	if !h.weather.Store().RemoveSavedLocation(id) {
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "location not saved")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"savedLocations": h.weather.Store().SavedLocations(),
	})
}

// GetHealth handles GET /health. Reports degraded when a configured backend
// ping fails.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.StoragePing != nil {
		if err := h.StoragePing(); err == nil {
			checks["storage"] = "healthy"
		} else {
			checks["storage"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if h.CachePing != nil {
		if err := h.CachePing(); err == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"status":    status,
		"service":   "weather-companion",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// coordsParam parses and validates the lat/lon query parameters, writing the
// 400 response itself on failure.
func (h *Handler) coordsParam(w http.ResponseWriter, r *http.Request) (models.Coordinates, bool) {
	coords, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return models.Coordinates{}, false
	}
	return coords, true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the
// underlying error at DEBUG level if a logger is in the request context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, geo.ErrLocationUnavailable) {
		writeError(w, r, http.StatusServiceUnavailable, "LOCATION_UNAVAILABLE", "device location is not available")
		return
	}
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	if logger := requestLogger(r); logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}

func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
