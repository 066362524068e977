package locate

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/ppiankov/rflocate/internal/model"
)

// Fit is the raw output of one estimator in the planar frame
type Fit struct {
	Position   orb.Point
	Residual   float64
	Confidence float64
	Converged  bool
	Iterations int
}

// Estimator fits an emitter position to station powers
type Estimator interface {
	Method() string
	Fit(stations []orb.Point, powers []float64) Fit
}

// confidence maps a residual to [0, 100]
func confidence(residual float64, count int) float64 {
	if count == 0 || math.IsNaN(residual) {
		return 0
	}
	c := 100 - residual/float64(count)
	return math.Max(0, math.Min(100, c))
}

// centroidOf is the unweighted mean position, used as the optimiser seed
func centroidOf(stations []orb.Point) orb.Point {
	var p orb.Point
	if len(stations) == 0 {
		return p
	}
	for _, s := range stations {
		p[0] += s[0]
		p[1] += s[1]
	}
	p[0] /= float64(len(stations))
	p[1] /= float64(len(stations))
	return p
}

// LeastSquares minimises the unweighted squared power error
type LeastSquares struct {
	Model    model.PathLossModel
	Settings Settings
}

func (LeastSquares) Method() string { return model.MethodLeastSquares }

func (e LeastSquares) Fit(stations []orb.Point, powers []float64) Fit {
	obj := objective{model: e.Model, stations: stations, powers: powers}
	return fitObjective(obj, stations, e.Settings)
}

// WeightedLeastSquares trusts stronger signals more: weight = max(0.1, power/100)
type WeightedLeastSquares struct {
	Model    model.PathLossModel
	Settings Settings
}

func (WeightedLeastSquares) Method() string { return model.MethodWeightedLeastSquares }

func (e WeightedLeastSquares) Fit(stations []orb.Point, powers []float64) Fit {
	weights := make([]float64, len(powers))
	for i, p := range powers {
		weights[i] = math.Max(0.1, p/100)
	}
	obj := objective{model: e.Model, stations: stations, powers: powers, weights: weights}
	return fitObjective(obj, stations, e.Settings)
}

func fitObjective(obj objective, stations []orb.Point, s Settings) Fit {
	r := minimize(obj, centroidOf(stations), s)
	residual := math.Max(0, r.Value)
	return Fit{
		Position:   r.Position,
		Residual:   residual,
		Confidence: confidence(residual, len(stations)),
		Converged:  r.Converged,
		Iterations: r.Iterations,
	}
}

// Centroid is the power-weighted mean of station positions. Its residual
// under the model is reported for comparison only.
type Centroid struct {
	Model model.PathLossModel
}

func (Centroid) Method() string { return model.MethodCentroid }

func (e Centroid) Fit(stations []orb.Point, powers []float64) Fit {
	if len(stations) == 0 {
		return Fit{}
	}

	minPower := math.Inf(1)
	for _, p := range powers {
		minPower = math.Min(minPower, p)
	}

	var total float64
	var pos orb.Point
	for i, s := range stations {
		w := powers[i] - minPower + 1
		pos[0] += w * s[0]
		pos[1] += w * s[1]
		total += w
	}
	pos[0] /= total
	pos[1] /= total

	obj := objective{model: e.Model, stations: stations, powers: powers}
	residual := obj.Value([]float64{pos[0], pos[1]})
	return Fit{
		Position:   pos,
		Residual:   residual,
		Confidence: confidence(residual, len(stations)),
		Converged:  true,
	}
}
