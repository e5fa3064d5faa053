package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"weather-companion/internal/cache"
	"weather-companion/internal/circuitbreaker"
	"weather-companion/internal/client"
	"weather-companion/internal/config"
	"weather-companion/internal/geo"
	httphandler "weather-companion/internal/http"
	"weather-companion/internal/models"
	"weather-companion/internal/observability"
	"weather-companion/internal/refresh"
	"weather-companion/internal/service"
	"weather-companion/internal/session"
	"weather-companion/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	source := client.NewOpenMeteoClientWithRetry(
		client.Endpoints{
			ForecastURL:   cfg.ForecastURL,
			GeocodingURL:  cfg.GeocodingURL,
			AirQualityURL: cfg.AirQualityURL,
			ArchiveURL:    cfg.ArchiveURL,
		},
		cfg.APITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if cfg.CircuitBreakerEnabled {
		source.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Cooldown:         cfg.CircuitBreakerCooldown,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerState.WithLabelValues("open_meteo").Set(float64(to))
				logger.Info("circuit breaker state change",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		}))
		observability.CircuitBreakerState.WithLabelValues("open_meteo").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("cooldown", cfg.CircuitBreakerCooldown))
	}

	var snapCache cache.SnapshotCache
	var memcacheCloser *cache.MemcachedSnapshotCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedSnapshotCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		snapCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		snapCache = cache.NewInMemorySnapshotCache()
		logger.Info("cache backend: in_memory")
	}

	kv, err := storage.NewSQLiteKV(cfg.StoragePath)
	if err != nil {
		logger.Fatal("preference storage", zap.Error(err), zap.String("path", cfg.StoragePath))
	}

	store := session.New(kv, logger, cfg.DefaultActivities)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	store.Load(loadCtx)
	loadCancel()

	policy := refresh.Policy{
		MinInterval: cfg.RefreshMinInterval,
		Tolerance:   cfg.CoordinateTolerance,
	}
	weather := service.NewWeather(source, store, snapCache, policy, cfg.CacheTTL, cfg.StaleMaxAge, cfg.CoalesceTimeout)

	locationProvider := &geo.StaticProvider{
		Coords:  models.Coordinates{Latitude: cfg.StaticLatitude, Longitude: cfg.StaticLongitude},
		Name:    cfg.StaticLocationName,
		Enabled: cfg.StaticLocationEnabled,
	}
	if cfg.StaticLocationEnabled && cfg.StaticLocationName == "" {
		locationProvider.Geocoder = geo.NewNominatimGeocoder(cfg.NominatimUserAgent, cfg.APITimeout)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(weather, locationProvider, nil, logger)
	handler.StoragePing = kv.Ping
	if memcacheCloser != nil {
		handler.CachePing = memcacheCloser.Ping
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/forecast", handler.GetForecast).Methods("GET")
	api.HandleFunc("/forecast/current", handler.GetCurrentForecast).Methods("GET")
	api.HandleFunc("/airquality", handler.GetAirQuality).Methods("GET")
	api.HandleFunc("/search", handler.SearchLocations).Methods("GET")
	api.HandleFunc("/history", handler.GetHistory).Methods("GET")
	api.HandleFunc("/activities", handler.GetActivities).Methods("GET")
	api.HandleFunc("/tip", handler.GetTip).Methods("GET")
	api.HandleFunc("/moon", handler.GetMoon).Methods("GET")
	api.HandleFunc("/preferences", handler.GetPreferences).Methods("GET")
	api.HandleFunc("/preferences/units", handler.PutUnits).Methods("PUT")
	api.HandleFunc("/preferences/theme", handler.PutTheme).Methods("PUT")
	api.HandleFunc("/preferences/layout", handler.PutLayout).Methods("PUT")
	api.HandleFunc("/preferences/activities", handler.PutActivities).Methods("PUT")
	api.HandleFunc("/locations", handler.PostLocation).Methods("POST")
	api.HandleFunc("/locations/{id}", handler.DeleteLocation).Methods("DELETE")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if inFlight := httphandler.InFlightCount(); inFlight > 0 {
		logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
		waitCancel()
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := kv.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
