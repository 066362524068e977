package simulate

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ppiankov/rflocate/internal/model"
)

func TestDefaultLayout(t *testing.T) {
	layout := DefaultLayout()
	if len(layout) != 8 {
		t.Fatalf("Expected 8 stations, got %d", len(layout))
	}
	if layout[0].Name != "SENSOR-1" || layout[0].X != -80 || layout[0].Y != -80 {
		t.Errorf("Unexpected first station: %+v", layout[0])
	}
	if layout[7].Name != "SENSOR-8" || layout[7].X != -80 || layout[7].Y != 0 {
		t.Errorf("Unexpected last station: %+v", layout[7])
	}
}

func TestGenerator_NoiselessMatchesModel(t *testing.T) {
	m := model.DefaultPathLossModel()
	g := NewGenerator(m, nil, 1, WithNoise(0))

	readings := g.Generate(orb.Point{0, 0}, false)
	for _, r := range readings {
		want := math.Round(m.PredictPower(math.Hypot(r.X, r.Y))*100) / 100
		if r.Power != want {
			t.Errorf("Station %d: expected %.2f, got %.2f", r.StationID, want, r.Power)
		}
		if r.IsAnomaly == nil || *r.IsAnomaly {
			t.Errorf("Station %d: expected IsAnomaly=false", r.StationID)
		}
		if !r.HasGeo() {
			t.Errorf("Station %d: expected lat/lon", r.StationID)
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	m := model.DefaultPathLossModel()

	a := NewGenerator(m, nil, 42).Generate(orb.Point{30, 20}, true)
	b := NewGenerator(m, nil, 42).Generate(orb.Point{30, 20}, true)
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical readings for the same seed")
	}

	c := NewGenerator(m, nil, 43).Generate(orb.Point{30, 20}, true)
	if reflect.DeepEqual(a, c) {
		t.Error("Expected different readings for a different seed")
	}
}

func TestGenerator_InjectsAnomalies(t *testing.T) {
	m := model.DefaultPathLossModel()

	for seed := uint64(0); seed < 20; seed++ {
		g := NewGenerator(m, nil, seed, WithNoise(0))
		readings := g.Generate(orb.Point{50, 50}, true)

		flagged := 0
		for _, r := range readings {
			want := math.Round(m.PredictPower(math.Hypot(r.X-50, r.Y-50))*100) / 100
			if *r.IsAnomaly {
				flagged++
				if math.Abs(r.Power-want) > 30.01 {
					t.Errorf("Seed %d station %d: offset %.2f out of range", seed, r.StationID, r.Power-want)
				}
			} else if r.Power != want {
				t.Errorf("Seed %d station %d: clean reading changed", seed, r.StationID)
			}
		}
		if flagged < 1 || flagged > 2 {
			t.Errorf("Seed %d: expected 1-2 anomalies, got %d", seed, flagged)
		}
	}
}

func TestGenerator_Scenarios(t *testing.T) {
	g := NewGenerator(model.DefaultPathLossModel(), nil, 7)

	scenarios := g.Scenarios()
	if len(scenarios) != 4 {
		t.Fatalf("Expected 4 scenarios, got %d", len(scenarios))
	}
	random := scenarios[3].Source
	for _, v := range []float64{random[0], random[1]} {
		if v < 20 || v > 80 {
			t.Errorf("Expected random source within [20, 80], got %v", random)
		}
	}

	s, err := g.Scenario("corner")
	if err != nil {
		t.Fatalf("Scenario failed: %v", err)
	}
	if s.Source != (orb.Point{20, 20}) || s.Anomalies {
		t.Errorf("Unexpected corner scenario: %+v", s)
	}
	if got := g.Run(s); len(got) != 8 {
		t.Errorf("Expected 8 readings, got %d", len(got))
	}

	if _, err := g.Scenario("nope"); err == nil {
		t.Error("Expected error for unknown scenario")
	}
}
