package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rflocate/internal/model"
)

func sampleReadings() []model.StationReading {
	return []model.StationReading{
		{StationID: 1, X: -80, Y: -80, Power: 60.1},
		{StationID: 2, X: 80, Y: -80, Power: 61.4},
		{StationID: 3, X: 80, Y: 80, Power: 59.8},
	}
}

func TestKey_Deterministic(t *testing.T) {
	m := model.DefaultPathLossModel()
	origin := model.DefaultConfig().Origin

	a, err := Key(m, origin, "local", sampleReadings())
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	b, _ := Key(m, origin, "local", sampleReadings())
	if a != b {
		t.Errorf("Expected equal keys, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "rflocate:v1:") {
		t.Errorf("Expected key prefix, got %s", a)
	}

	changed := sampleReadings()
	changed[0].Power = 60.2
	c, _ := Key(m, origin, "local", changed)
	if c == a {
		t.Error("Expected different key for different power")
	}

	d, _ := Key(m, origin, "geographic", sampleReadings())
	if d == a {
		t.Error("Expected different key for different mode")
	}

	m.N = 3
	e, _ := Key(m, origin, "local", sampleReadings())
	if e == a {
		t.Error("Expected different key for different model")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("Expected 'v', got %q (found=%v)", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after delete")
	}

	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)

	_ = c.Set("short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestReportRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	report := &model.Report{
		RunID:    "run-1",
		Source:   "scenario.yaml",
		Readings: sampleReadings(),
		Location: &model.LocationEstimate{
			Position:   model.Position{X: 1.5, Y: -2},
			Confidence: 97,
			MethodUsed: model.MethodLeastSquares,
		},
	}

	if err := SetReport(c, "r", report, 0); err != nil {
		t.Fatalf("SetReport failed: %v", err)
	}
	got, ok := GetReport(c, "r")
	if !ok {
		t.Fatal("Expected cached report")
	}
	if got.RunID != "run-1" || got.Location == nil || got.Location.Position.X != 1.5 {
		t.Errorf("Unexpected cached report: %+v", got)
	}
}

func TestGetReport_DropsCorruptEntry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("bad", []byte("{not json"), 0)

	if _, ok := GetReport(c, "bad"); ok {
		t.Error("Expected miss for corrupt entry")
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("Expected corrupt entry to be deleted")
	}
}

func TestFromConfig(t *testing.T) {
	if c := FromConfig(model.CacheConfig{Enabled: false}); c != nil {
		t.Error("Expected nil cache when disabled")
	}
	if c := FromConfig(model.CacheConfig{Enabled: true, TTL: time.Minute}); c == nil {
		t.Error("Expected cache when enabled")
	}
}
