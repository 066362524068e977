package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/rflocate/internal/cache"
	"github.com/ppiankov/rflocate/internal/model"
	"github.com/ppiankov/rflocate/internal/observability"
)

var gridLayout = [][2]float64{
	{-80, -80}, {80, -80}, {80, 80}, {-80, 80},
	{0, -80}, {80, 0}, {0, 80}, {-80, 0},
}

// gridInput returns noiseless readings of a source at (sx, sy)
func gridInput(sx, sy float64) *Input {
	m := model.DefaultPathLossModel()
	readings := make([]model.StationReading, len(gridLayout))
	for i, p := range gridLayout {
		readings[i] = model.StationReading{
			StationID: i + 1,
			Name:      "SENSOR",
			X:         p[0],
			Y:         p[1],
			Power:     m.PredictPower(math.Hypot(p[0]-sx, p[1]-sy)),
		}
	}
	return &Input{Name: "grid", Readings: readings}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(model.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("expected pipeline, got error: %v", err)
	}
	return p
}

func TestRun_LocatesSource(t *testing.T) {
	p := newTestPipeline(t)

	report, err := p.Run(context.Background(), gridInput(0, 0))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.RunID == "" {
		t.Error("Expected run ID to be set")
	}
	if report.Source != "grid" {
		t.Errorf("Expected source 'grid', got %q", report.Source)
	}
	if report.Location == nil {
		t.Fatalf("Expected a location, got error %q", report.LocationError)
	}
	if d := math.Hypot(report.Location.Position.X, report.Location.Position.Y); d > 2 {
		t.Errorf("Expected estimate within 2 km of origin, got %.3f km", d)
	}
	if report.Location.Confidence < 90 {
		t.Errorf("Expected confidence >= 90, got %.1f", report.Location.Confidence)
	}
	if !report.DetectionVerdict.Valid {
		t.Errorf("Expected valid detection, got %q", report.DetectionVerdict.Reason)
	}
	if report.LocationVerdict == nil {
		t.Error("Expected location verdict")
	}
	if len(report.Ranges) != 8 {
		t.Errorf("Expected 8 ranges, got %d", len(report.Ranges))
	}
	if len(report.Signals) == 0 {
		t.Error("Expected diagnostic signals")
	}
	for _, r := range report.Readings {
		if !r.HasGeo() {
			t.Errorf("Expected station %d to be annotated with lat/lon", r.StationID)
		}
	}
	if report.CompletedAt.Before(report.StartedAt) {
		t.Error("Expected completion after start")
	}
}

func TestRun_FlagsInjectedAnomaly(t *testing.T) {
	p := newTestPipeline(t)
	in := gridInput(0, 0)
	in.Readings[2].Power += 25

	report, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	flagged := false
	for _, i := range report.Detection.AnomalyIndices {
		if i == 2 {
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("Expected reading 2 flagged, got %v", report.Detection.AnomalyIndices)
	}
	if !report.Ranges[2].Anomalous {
		t.Error("Expected range of reading 2 to be marked anomalous")
	}
	if report.Location == nil {
		t.Fatalf("Expected a location, got error %q", report.LocationError)
	}
	if d := math.Hypot(report.Location.Position.X, report.Location.Position.Y); d > 2 {
		t.Errorf("Expected estimate within 2 km of origin, got %.3f km", d)
	}
}

func TestRun_TooFewStationsIsNoFix(t *testing.T) {
	p := newTestPipeline(t)
	in := gridInput(0, 0)
	in.Readings = in.Readings[:2]

	report, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Location != nil {
		t.Error("Expected no location")
	}
	if report.LocationError == "" {
		t.Error("Expected location error to be recorded")
	}
	if report.Detection.DetectionMethod != model.DetectionInsufficientData {
		t.Errorf("Expected %s detection, got %s", model.DetectionInsufficientData, report.Detection.DetectionMethod)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"geographic without lat/lon", func(in *Input) { in.Mode = "geographic" }},
		{"unknown mode", func(in *Input) { in.Mode = "polar" }},
		{"bad model override", func(in *Input) { in.Model = &model.PathLossModel{N: 0, P0: 100, D0: 1} }},
		{"duplicate station", func(in *Input) { in.Readings[1].StationID = in.Readings[0].StationID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := gridInput(0, 0)
			tt.mutate(in)
			_, err := p.Run(context.Background(), in)
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if _, err := p.Run(context.Background(), nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil input, got %v", err)
	}
}

func TestRun_GeographicMode(t *testing.T) {
	p := newTestPipeline(t)

	// Annotate a local run, then feed its lat/lon back in geographic mode
	local, err := p.Run(context.Background(), gridInput(10, -20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	in := &Input{Name: "geo", Mode: "geographic", Readings: local.Readings}
	for i := range in.Readings {
		in.Readings[i].X, in.Readings[i].Y = 0, 0
	}

	report, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Location == nil {
		t.Fatalf("Expected a location, got error %q", report.LocationError)
	}
	if report.Location.CoordinateSystem != model.CoordinateGeographic {
		t.Errorf("Expected geographic coordinates, got %s", report.Location.CoordinateSystem)
	}
	if d := math.Hypot(report.Location.Position.X-10, report.Location.Position.Y+20); d > 2 {
		t.Errorf("Expected estimate within 2 km of (10, -20), got %.3f km", d)
	}
}

func TestRun_CacheAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	p := newTestPipeline(t,
		WithMetrics(metrics),
		WithCache(cache.NewMemoryCache(time.Minute, time.Minute)))

	first, err := p.Run(context.Background(), gridInput(5, 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := p.Run(context.Background(), gridInput(5, 5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if first.RunID == second.RunID {
		t.Error("Expected cached report to get a fresh run ID")
	}
	if second.Location == nil || second.Location.Position != first.Location.Position {
		t.Error("Expected cached report to carry the same position")
	}
	if got := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(StatusOK)); got != 2 {
		t.Errorf("Expected 2 ok runs, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.MethodSelected.WithLabelValues(first.Location.MethodUsed)); got != 1 {
		t.Errorf("Expected method selected once, got %v", got)
	}

	in := gridInput(0, 0)
	in.Readings = in.Readings[:2]
	if _, err := p.Run(context.Background(), in); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(StatusNoFix)); got != 1 {
		t.Errorf("Expected 1 no_fix run, got %v", got)
	}

	in = gridInput(0, 0)
	in.Mode = "polar"
	_, _ = p.Run(context.Background(), in)
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(StatusError)); got != 1 {
		t.Errorf("Expected 1 error run, got %v", got)
	}
}

func TestLocateFile(t *testing.T) {
	p := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := WriteInput(path, gridInput(0, 0)); err != nil {
		t.Fatalf("WriteInput failed: %v", err)
	}

	report, err := p.LocateFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LocateFile failed: %v", err)
	}
	if report.Location == nil {
		t.Errorf("Expected a location, got error %q", report.LocationError)
	}

	if _, err := p.LocateFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewPipeline_RejectsBadModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Model.D0 = 0
	if _, err := NewPipeline(cfg); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestStationRanges_OmitsOverflow(t *testing.T) {
	m := model.DefaultPathLossModel()
	readings := []model.StationReading{
		{StationID: 1, Power: m.PredictPower(10)},
		{StationID: 2, Power: -7000},
	}

	ranges := stationRanges(m, readings, []int{1})

	if ranges[0].RangeKm == nil || math.Abs(*ranges[0].RangeKm-10) > 1e-9 {
		t.Errorf("Expected range 10 km, got %v", ranges[0].RangeKm)
	}
	if ranges[1].RangeKm != nil {
		t.Errorf("Expected no range for an overflowing reading, got %v", *ranges[1].RangeKm)
	}
	if !ranges[1].Anomalous {
		t.Error("Expected station 2 marked anomalous")
	}
	if _, err := json.Marshal(ranges); err != nil {
		t.Errorf("Expected ranges to marshal, got %v", err)
	}
}
