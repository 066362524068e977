package simulate

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ppiankov/rflocate/internal/geo"
	"github.com/ppiankov/rflocate/internal/model"
)

// Station is a fixed sensor position in the planar frame
type Station struct {
	ID   int
	Name string
	X, Y float64
}

// DefaultLayout is eight sensors on a ±80 km square: corners then edge midpoints
func DefaultLayout() []Station {
	pts := [][2]float64{
		{-80, -80}, {80, -80}, {80, 80}, {-80, 80},
		{0, -80}, {80, 0}, {0, 80}, {-80, 0},
	}
	out := make([]Station, len(pts))
	for i, p := range pts {
		out[i] = Station{ID: i + 1, Name: fmt.Sprintf("SENSOR-%d", i+1), X: p[0], Y: p[1]}
	}
	return out
}

// AnomalyKind describes how an injected reading is corrupted
type AnomalyKind string

const (
	AnomalyHigh  AnomalyKind = "high"  // +15..30 dB, e.g. a faulty front end
	AnomalyLow   AnomalyKind = "low"   // -15..25 dB, e.g. a blocked antenna
	AnomalyNoise AnomalyKind = "noise" // ±20 dB of environmental interference
)

var anomalyKinds = []AnomalyKind{AnomalyHigh, AnomalyLow, AnomalyNoise}

// Generator produces deterministic synthetic readings for a seed
type Generator struct {
	model     model.PathLossModel
	transform geo.Transform
	stations  []Station
	noiseStd  float64
	src       rand.Source
	rng       *rand.Rand
}

// Option configures a Generator
type Option func(*Generator)

// WithStations replaces the default layout
func WithStations(stations []Station) Option {
	return func(g *Generator) { g.stations = stations }
}

// WithNoise sets the gaussian noise standard deviation in dB
func WithNoise(std float64) Option {
	return func(g *Generator) { g.noiseStd = std }
}

// NewGenerator creates a generator. A nil transform uses the default origin.
func NewGenerator(m model.PathLossModel, t geo.Transform, seed uint64, opts ...Option) *Generator {
	if t == nil {
		t = geo.FromConfig(model.DefaultConfig().Origin)
	}
	src := rand.NewSource(seed)
	g := &Generator{
		model:     m,
		transform: t,
		stations:  DefaultLayout(),
		noiseStd:  2.0,
		src:       src,
		rng:       rand.New(src),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns one reading per station for a source at (x, y) km.
// With anomalies, 1-2 random stations get a corrupted power and IsAnomaly=true.
func (g *Generator) Generate(source orb.Point, anomalies bool) []model.StationReading {
	corrupt := map[int]AnomalyKind{}
	if anomalies && len(g.stations) > 0 {
		count := 1 + g.rng.Intn(2)
		if count > len(g.stations) {
			count = len(g.stations)
		}
		for _, idx := range g.rng.Perm(len(g.stations))[:count] {
			corrupt[idx] = anomalyKinds[g.rng.Intn(len(anomalyKinds))]
		}
	}

	readings := make([]model.StationReading, len(g.stations))
	for i, s := range g.stations {
		power := g.receivedPower(source, s)
		kind, bad := corrupt[i]
		if bad {
			power += g.anomalyOffset(kind)
		}

		lat, lon := g.transform.Inverse(s.X, s.Y)
		isAnomaly := bad
		readings[i] = model.StationReading{
			StationID: s.ID,
			Name:      s.Name,
			X:         s.X,
			Y:         s.Y,
			Lat:       &lat,
			Lon:       &lon,
			Power:     math.Round(power*100) / 100,
			IsAnomaly: &isAnomaly,
		}
	}
	return readings
}

func (g *Generator) receivedPower(source orb.Point, s Station) float64 {
	d := math.Hypot(source[0]-s.X, source[1]-s.Y)
	p := g.model.PredictPower(d)
	if g.noiseStd > 0 {
		p += distuv.Normal{Mu: 0, Sigma: g.noiseStd, Src: g.src}.Rand()
	}
	return p
}

func (g *Generator) anomalyOffset(kind AnomalyKind) float64 {
	switch kind {
	case AnomalyHigh:
		return distuv.Uniform{Min: 15, Max: 30, Src: g.src}.Rand()
	case AnomalyLow:
		return -distuv.Uniform{Min: 15, Max: 25, Src: g.src}.Rand()
	default:
		return distuv.Uniform{Min: -20, Max: 20, Src: g.src}.Rand()
	}
}

// Scenario is a named synthetic test case
type Scenario struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Source      orb.Point `json:"source" yaml:"source"`
	Anomalies   bool      `json:"anomalies" yaml:"anomalies"`
}

// Scenarios returns the standard scenarios. The last one draws its source
// position from the generator.
func (g *Generator) Scenarios() []Scenario {
	random := orb.Point{
		distuv.Uniform{Min: 20, Max: 80, Src: g.src}.Rand(),
		distuv.Uniform{Min: 20, Max: 80, Src: g.src}.Rand(),
	}
	return []Scenario{
		{Name: "center", Description: "Source in the middle of the area", Source: orb.Point{50, 50}},
		{Name: "corner", Description: "Source near a corner of the area", Source: orb.Point{20, 20}},
		{Name: "center-anomaly", Description: "Central source with corrupted station readings", Source: orb.Point{50, 50}, Anomalies: true},
		{Name: "random-anomaly", Description: "Random source with corrupted station readings", Source: random, Anomalies: true},
	}
}

// Scenario returns a named scenario
func (g *Generator) Scenario(name string) (Scenario, error) {
	for _, s := range g.Scenarios() {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: unknown scenario %q", model.ErrInvalidInput, name)
}

// Run generates readings for a scenario
func (g *Generator) Run(s Scenario) []model.StationReading {
	return g.Generate(s.Source, s.Anomalies)
}
