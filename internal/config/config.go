package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ForecastURL   string
	GeocodingURL  string
	AirQualityURL string
	ArchiveURL    string
	APITimeout    time.Duration

	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerCooldown         time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	StaleMaxAge           time.Duration
	CoalesceTimeout       time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RefreshMinInterval  time.Duration
	CoordinateTolerance float64

	StoragePath string

	StaticLocationEnabled bool
	StaticLatitude        float64
	StaticLongitude       float64
	StaticLocationName    string
	NominatimUserAgent    string

	DefaultActivities []string

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OpenMeteo struct {
		ForecastURL   string `yaml:"forecast_url"`
		GeocodingURL  string `yaml:"geocoding_url"`
		AirQualityURL string `yaml:"air_quality_url"`
		ArchiveURL    string `yaml:"archive_url"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"open_meteo"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Cooldown         string `yaml:"cooldown"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		StaleMaxAge     string `yaml:"stale_max_age"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Refresh struct {
		MinInterval         string  `yaml:"min_interval"`
		CoordinateTolerance float64 `yaml:"coordinate_tolerance"`
	} `yaml:"refresh"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Location struct {
		StaticEnabled      bool    `yaml:"static_enabled"`
		Latitude           float64 `yaml:"latitude"`
		Longitude          float64 `yaml:"longitude"`
		Name               string  `yaml:"name"`
		NominatimUserAgent string  `yaml:"nominatim_user_agent"`
	} `yaml:"location"`

	Activities struct {
		Defaults []string `yaml:"defaults"`
	} `yaml:"activities"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), with
// env overrides for deployment-specific values. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = envOr("SERVER_PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ForecastURL = stringOr(fc.OpenMeteo.ForecastURL, "https://api.open-meteo.com/v1/forecast")
	cfg.GeocodingURL = stringOr(fc.OpenMeteo.GeocodingURL, "https://geocoding-api.open-meteo.com/v1/search")
	cfg.AirQualityURL = stringOr(fc.OpenMeteo.AirQualityURL, "https://air-quality-api.open-meteo.com/v1/air-quality")
	cfg.ArchiveURL = stringOr(fc.OpenMeteo.ArchiveURL, "https://archive-api.open-meteo.com/v1/archive")
	cfg.APITimeout = parseDuration(fc.OpenMeteo.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerCooldown = parseDuration(fc.Reliability.CircuitBreaker.Cooldown, 30*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(envOr("CACHE_BACKEND", fc.Cache.Backend)))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.StaleMaxAge = parseDuration(fc.Cache.StaleMaxAge, 6*time.Hour)
	cfg.CoalesceTimeout = parseDuration(fc.Cache.CoalesceTimeout, 10*time.Second)
	cfg.MemcachedAddrs = strings.TrimSpace(envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RefreshMinInterval = parseDuration(fc.Refresh.MinInterval, 10*time.Minute)
	cfg.CoordinateTolerance = fc.Refresh.CoordinateTolerance
	if cfg.CoordinateTolerance <= 0 {
		cfg.CoordinateTolerance = 0.01
	}

	cfg.StoragePath = envOr("STORAGE_PATH", fc.Storage.Path)
	if cfg.StoragePath == "" {
		cfg.StoragePath = "weather.db"
	}

	cfg.StaticLocationEnabled = fc.Location.StaticEnabled
	if v := os.Getenv("STATIC_LOCATION"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("STATIC_LOCATION must be a boolean, got %q", v)
		}
		cfg.StaticLocationEnabled = enabled
	}
	cfg.StaticLatitude = fc.Location.Latitude
	cfg.StaticLongitude = fc.Location.Longitude
	cfg.StaticLocationName = fc.Location.Name
	cfg.NominatimUserAgent = stringOr(fc.Location.NominatimUserAgent, "weather-companion/1.0")

	cfg.DefaultActivities = fc.Activities.Defaults

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func stringOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Auto-adjusts RequestTimeout to exceed the upstream API timeout so the
// handler deadline never fires before the client gives up.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.APITimeout {
		cfg.RequestTimeout = cfg.APITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.StaticLocationEnabled {
		if cfg.StaticLatitude < -90 || cfg.StaticLatitude > 90 {
			return fmt.Errorf("location.latitude out of range: %v", cfg.StaticLatitude)
		}
		if cfg.StaticLongitude < -180 || cfg.StaticLongitude > 180 {
			return fmt.Errorf("location.longitude out of range: %v", cfg.StaticLongitude)
		}
	}
	return nil
}
