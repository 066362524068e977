package locate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/ppiankov/rflocate/internal/geo"
	"github.com/ppiankov/rflocate/internal/logging"
	"github.com/ppiankov/rflocate/internal/model"
)

// Mode selects which station coordinates feed the fit
type Mode string

const (
	// ModeLocal fits on the readings' planar X/Y
	ModeLocal Mode = model.CoordinateLocal
	// ModeGeographic projects the readings' lat/lon through the transform first
	ModeGeographic Mode = model.CoordinateGeographic
)

// Settings bounds the optimiser and controls estimator concurrency
type Settings struct {
	MaxIterations   int
	FuncEvaluations int
	Parallel        bool
}

// DefaultSettings returns the standard optimiser bounds
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:   200,
		FuncEvaluations: 2000,
		Parallel:        true,
	}
}

// SettingsFromConfig converts the locate section of the configuration
func SettingsFromConfig(cfg model.LocateConfig) Settings {
	s := DefaultSettings()
	if cfg.MaxIterations > 0 {
		s.MaxIterations = cfg.MaxIterations
	}
	if cfg.FuncEvaluations > 0 {
		s.FuncEvaluations = cfg.FuncEvaluations
	}
	s.Parallel = cfg.Parallel
	return s
}

// Option configures an Engine
type Option func(*Engine)

// WithSettings overrides the optimiser settings
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithLogger attaches a structured logger
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine fits an emitter position using competing estimators
type Engine struct {
	model     model.PathLossModel
	transform geo.Transform
	settings  Settings
	log       logging.Logger
}

// NewEngine creates a location engine. A nil transform uses the default origin.
func NewEngine(m model.PathLossModel, t geo.Transform, opts ...Option) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("path-loss model: %w", err)
	}
	if t == nil {
		t = geo.FromConfig(model.DefaultConfig().Origin)
	}

	e := &Engine{
		model:     m,
		transform: t,
		settings:  DefaultSettings(),
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Model returns the engine's path-loss model
func (e *Engine) Model() model.PathLossModel {
	return e.model
}

// estimators returns the closed set of estimators in enumeration order
func (e *Engine) estimators() []Estimator {
	return []Estimator{
		LeastSquares{Model: e.model, Settings: e.settings},
		WeightedLeastSquares{Model: e.model, Settings: e.settings},
		Centroid{Model: e.model},
	}
}

// Locate fits a position from the readings at normalIndices. A nil
// normalIndices uses every reading.
func (e *Engine) Locate(ctx context.Context, readings []model.StationReading, normalIndices []int, mode Mode) (*model.LocationEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mode != ModeLocal && mode != ModeGeographic {
		return nil, fmt.Errorf("%w: unknown coordinate mode %q", model.ErrInvalidInput, mode)
	}
	if err := model.ValidateReadings(readings); err != nil {
		return nil, err
	}

	indices, err := resolveIndices(normalIndices, len(readings))
	if err != nil {
		return nil, err
	}
	if len(indices) < minFitStations {
		return nil, fmt.Errorf("%w: %d usable stations, need at least %d", model.ErrInsufficientStations, len(indices), minFitStations)
	}

	stations := make([]orb.Point, len(indices))
	powers := make([]float64, len(indices))
	for k, idx := range indices {
		r := readings[idx]
		if mode == ModeGeographic {
			if !r.HasGeo() {
				return nil, fmt.Errorf("%w: station %d has no lat/lon in geographic mode", model.ErrInvalidInput, r.StationID)
			}
			x, y := e.transform.Forward(*r.Lat, *r.Lon)
			stations[k] = orb.Point{x, y}
		} else {
			stations[k] = orb.Point{r.X, r.Y}
		}
		powers[k] = r.Power
	}

	estimators := e.estimators()
	fits := e.runEstimators(estimators, stations, powers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	methods := make([]string, len(estimators))
	results := make([]model.EstimatorResult, len(estimators))
	for i, est := range estimators {
		methods[i] = est.Method()
		results[i] = e.toResult(methods[i], fits[i])
		e.log.Debug(ctx, "estimator result",
			logging.String("method", methods[i]),
			logging.Float("x", fits[i].Position[0]),
			logging.Float("y", fits[i].Position[1]),
			logging.Float("residual", fits[i].Residual),
			logging.Float("confidence", fits[i].Confidence),
			logging.Bool("converged", fits[i].Converged),
			logging.Int("iterations", fits[i].Iterations))
	}

	best, scores := selectBest(methods, fits, len(stations))
	chosen := fits[best]
	method := methods[best]
	e.log.Debug(ctx, "estimator selected", logging.String("method", method), logging.Any("scores", scores))

	outliers := []int{}
	if r, ok := e.refine(stations, powers, chosen); ok {
		for _, pos := range r.Dropped {
			outliers = append(outliers, indices[pos])
		}
		e.log.Debug(ctx, "refined estimate by dropping worst stations",
			logging.Any("dropped", outliers),
			logging.Float("confidence_before", chosen.Confidence),
			logging.Float("confidence_after", r.Fit.Confidence))
		chosen = r.Fit
		method = model.RefinedPrefix + method
	}

	return &model.LocationEstimate{
		Position:           e.position(chosen.Position),
		Confidence:         chosen.Confidence,
		Residual:           chosen.Residual,
		MethodUsed:         method,
		AllResults:         results,
		ValidStationsCount: len(indices),
		ExcludedStations:   excluded(indices, len(readings)),
		ExcludedOutliers:   outliers,
		CoordinateSystem:   string(mode),
		Quality:            AssessQuality(chosen.Confidence, chosen.Residual, len(indices)),
	}, nil
}

// runEstimators fits every estimator, concurrently when enabled, and waits for all
func (e *Engine) runEstimators(estimators []Estimator, stations []orb.Point, powers []float64) []Fit {
	fits := make([]Fit, len(estimators))
	if !e.settings.Parallel {
		for i, est := range estimators {
			fits[i] = est.Fit(stations, powers)
		}
		return fits
	}

	var wg sync.WaitGroup
	for i, est := range estimators {
		wg.Add(1)
		go func(i int, est Estimator) {
			defer wg.Done()
			fits[i] = est.Fit(stations, powers)
		}(i, est)
	}
	wg.Wait()
	return fits
}

func (e *Engine) position(p orb.Point) model.Position {
	lat, lon := e.transform.Inverse(p[0], p[1])
	return model.Position{X: p[0], Y: p[1], Lat: lat, Lon: lon}
}

func (e *Engine) toResult(method string, f Fit) model.EstimatorResult {
	return model.EstimatorResult{
		Method:     method,
		Position:   e.position(f.Position),
		Residual:   f.Residual,
		Confidence: f.Confidence,
		Converged:  f.Converged,
		Iterations: f.Iterations,
	}
}

// resolveIndices validates the normal subset, returning it sorted
func resolveIndices(indices []int, n int) ([]int, error) {
	if indices == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: index %d out of range [0, %d)", model.ErrInvalidInput, idx, n)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: duplicate index %d", model.ErrInvalidInput, idx)
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// excluded returns the reading indices outside the fitted subset
func excluded(indices []int, n int) []int {
	in := make(map[int]bool, len(indices))
	for _, idx := range indices {
		in[idx] = true
	}
	out := []int{}
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
