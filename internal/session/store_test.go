package session

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"weather-companion/internal/models"
	"weather-companion/internal/storage"
)

// recordingKV records Set calls so tests can observe write-behind persists.
type recordingKV struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newRecordingKV() *recordingKV {
	return &recordingKV{data: make(map[string][]byte)}
}

func (kv *recordingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return nil, false, kv.err
	}
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *recordingKV) Set(ctx context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return kv.err
	}
	kv.data[key] = value
	return nil
}

func (kv *recordingKV) Remove(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

func (kv *recordingKV) get(key string) ([]byte, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok
}

// waitForKey polls until the write-behind persist for key lands or the
// deadline passes.
func waitForKey(t *testing.T, kv *recordingKV, key string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := kv.get(key); ok {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("persist for %s never happened", key)
	return nil
}

func newTestStore(kv storage.KV) *Store {
	return New(kv, zap.NewNop(), []string{"Running", "Cycling", "Gardening"})
}

// TestStore_Defaults verifies the compiled-in defaults before any load.
func TestStore_Defaults(t *testing.T) {
	s := newTestStore(newRecordingKV())

	if s.Units() != "celsius" {
		t.Errorf("Units() = %q, want celsius", s.Units())
	}
	if s.Theme() != "dark" {
		t.Errorf("Theme() = %q, want dark", s.Theme())
	}
	if s.Location() != nil {
		t.Error("Location() should be nil before selection")
	}
	if _, ok := s.Snapshot(); ok {
		t.Error("Snapshot() should report absent before a fetch")
	}
	if !reflect.DeepEqual(s.LayoutOrder(), DefaultLayoutOrder) {
		t.Errorf("LayoutOrder() = %v, want %v", s.LayoutOrder(), DefaultLayoutOrder)
	}
}

// TestStore_SetUnits_Persists verifies the synchronous in-memory update and
// the eventual write-behind persist.
func TestStore_SetUnits_Persists(t *testing.T) {
	kv := newRecordingKV()
	s := newTestStore(kv)

	s.SetUnits("fahrenheit")
	if s.Units() != "fahrenheit" {
		t.Fatalf("Units() = %q immediately after set", s.Units())
	}

	raw := waitForKey(t, kv, KeyUnits)
	if string(raw) != `"fahrenheit"` {
		t.Errorf("persisted value = %s, want %q", raw, `"fahrenheit"`)
	}
}

// TestStore_PersistFailureKeepsMemory verifies a storage failure never rolls
// back the in-memory update.
func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	kv := newRecordingKV()
	kv.err = errors.New("disk full")
	s := newTestStore(kv)

	s.SetTheme("light")
	if s.Theme() != "light" {
		t.Errorf("Theme() = %q, want light despite persist failure", s.Theme())
	}
}

// TestStore_Load verifies the bulk load applies stored values and leaves
// defaults for absent or unparseable keys.
func TestStore_Load(t *testing.T) {
	kv := newRecordingKV()
	ctx := context.Background()

	mustSet := func(key string, v any) {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := kv.Set(ctx, key, raw); err != nil {
			t.Fatal(err)
		}
	}
	mustSet(KeyUnits, "fahrenheit")
	mustSet(KeySavedLocations, []models.Location{{ID: 7, Name: "Lisbon", Country: "Portugal"}})
	if err := kv.Set(ctx, KeyTheme, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(kv)
	s.Load(ctx)

	if s.Units() != "fahrenheit" {
		t.Errorf("Units() = %q, want fahrenheit", s.Units())
	}
	if s.Theme() != "dark" {
		t.Errorf("Theme() = %q, want default dark for unparseable key", s.Theme())
	}
	saved := s.SavedLocations()
	if len(saved) != 1 || saved[0].Name != "Lisbon" {
		t.Errorf("SavedLocations() = %v, want [Lisbon]", saved)
	}
}

// TestStore_SavedLocations verifies add-by-id guarding and idempotent
// removal.
func TestStore_SavedLocations(t *testing.T) {
	s := newTestStore(newRecordingKV())

	lisbon := models.Location{ID: 7, Name: "Lisbon", Country: "Portugal"}
	porto := models.Location{ID: 9, Name: "Porto", Country: "Portugal"}

	if !s.AddSavedLocation(lisbon) {
		t.Error("first add should report change")
	}
	if s.AddSavedLocation(lisbon) {
		t.Error("duplicate id add should be rejected")
	}
	s.AddSavedLocation(porto)

	before := s.SavedLocations()
	if s.RemoveSavedLocation(42) {
		t.Error("removing absent id should report no change")
	}
	after := s.SavedLocations()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("list changed by absent-id removal: %v -> %v", before, after)
	}

	if !s.RemoveSavedLocation(7) {
		t.Error("removing present id should report change")
	}
	remaining := s.SavedLocations()
	if len(remaining) != 1 || remaining[0].ID != 9 {
		t.Errorf("SavedLocations() = %v, want [Porto]", remaining)
	}
}

// TestStore_SnapshotReplacedWholesale verifies a new snapshot fully replaces
// the previous one.
func TestStore_SnapshotReplacedWholesale(t *testing.T) {
	s := newTestStore(newRecordingKV())

	first := models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 10}}
	first.Hourly.Time = []string{"2026-05-10T00:00"}
	s.SetSnapshot(first)

	second := models.Snapshot{CurrentWeather: models.CurrentWeather{Temperature: 20}}
	s.SetSnapshot(second)

	got, ok := s.Snapshot()
	if !ok {
		t.Fatal("Snapshot() reported absent")
	}
	if got.CurrentWeather.Temperature != 20 {
		t.Errorf("Temperature = %v, want 20", got.CurrentWeather.Temperature)
	}
	if len(got.Hourly.Time) != 0 {
		t.Error("hourly series from the previous snapshot leaked into the replacement")
	}
}
