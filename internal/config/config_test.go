package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig drops a YAML config into a temp project root and chdirs there
// so Load picks it up.
func writeConfig(t *testing.T, yaml string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "dev.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.ForecastURL != "https://api.open-meteo.com/v1/forecast" {
		t.Errorf("ForecastURL = %q", cfg.ForecastURL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.RefreshMinInterval != 10*time.Minute {
		t.Errorf("RefreshMinInterval = %v, want 10m", cfg.RefreshMinInterval)
	}
	if cfg.CoordinateTolerance != 0.01 {
		t.Errorf("CoordinateTolerance = %v, want 0.01", cfg.CoordinateTolerance)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.StoragePath != "weather.db" {
		t.Errorf("StoragePath = %q, want weather.db", cfg.StoragePath)
	}
}

func TestLoad_FileValues(t *testing.T) {
	writeConfig(t, `
open_meteo:
  forecast_url: "http://localhost:9999/forecast"
  timeout: "2s"
cache:
  backend: memcached
  ttl: "3m"
  stale_max_age: "1h"
  memcached:
    addrs: "cache1:11211,cache2:11211"
refresh:
  min_interval: "5m"
  coordinate_tolerance: 0.05
activities:
  defaults: [Running, Cycling]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ForecastURL != "http://localhost:9999/forecast" {
		t.Errorf("ForecastURL = %q", cfg.ForecastURL)
	}
	if cfg.APITimeout != 2*time.Second {
		t.Errorf("APITimeout = %v, want 2s", cfg.APITimeout)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 3*time.Minute {
		t.Errorf("CacheTTL = %v, want 3m", cfg.CacheTTL)
	}
	if cfg.StaleMaxAge != time.Hour {
		t.Errorf("StaleMaxAge = %v, want 1h", cfg.StaleMaxAge)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.RefreshMinInterval != 5*time.Minute {
		t.Errorf("RefreshMinInterval = %v, want 5m", cfg.RefreshMinInterval)
	}
	if cfg.CoordinateTolerance != 0.05 {
		t.Errorf("CoordinateTolerance = %v, want 0.05", cfg.CoordinateTolerance)
	}
	if len(cfg.DefaultActivities) != 2 || cfg.DefaultActivities[0] != "Running" {
		t.Errorf("DefaultActivities = %v", cfg.DefaultActivities)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, "cache:\n  backend: in_memory\nstorage:\n  path: \"from-file.db\"\n")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("STORAGE_PATH", "/var/lib/weather.db")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want env override memcached", cfg.CacheBackend)
	}
	if cfg.StoragePath != "/var/lib/weather.db" {
		t.Errorf("StoragePath = %q, want env override", cfg.StoragePath)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	writeConfig(t, "cache:\n  backend: redis\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "cache.backend") {
		t.Fatalf("Load() error = %v, want cache.backend error", err)
	}
}

func TestLoad_StaticLocationOutOfRange(t *testing.T) {
	writeConfig(t, "location:\n  static_enabled: true\n  latitude: 123.0\n  longitude: 0.0\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "latitude") {
		t.Fatalf("Load() error = %v, want latitude range error", err)
	}
}

func TestLoad_RequestTimeoutAdjusted(t *testing.T) {
	writeConfig(t, "open_meteo:\n  timeout: \"8s\"\nrequest:\n  timeout: \"3s\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 9*time.Second {
		t.Errorf("RequestTimeout = %v, want adjusted 9s", cfg.RequestTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v, want not-found error", err)
	}
}
