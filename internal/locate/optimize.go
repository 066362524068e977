package locate

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	// gradientThreshold stops BFGS once the gradient infinity norm is this small
	gradientThreshold = 1e-8

	// stationaryTolerance accepts a run that stopped early (e.g. a line search
	// making no progress at machine precision) if it ended at a stationary point
	stationaryTolerance = 1e-3
)

// minimizeResult is the outcome of one bounded BFGS run
type minimizeResult struct {
	Position   orb.Point
	Value      float64
	Iterations int
	Converged  bool
}

// minimize runs BFGS on obj from seed. A run that ends on an iteration or
// evaluation limit reports the best iterate found with Converged=false.
func minimize(obj objective, seed orb.Point, s Settings) minimizeResult {
	problem := optimize.Problem{
		Func: obj.Value,
		Grad: obj.Gradient,
	}
	settings := &optimize.Settings{
		GradientThreshold: gradientThreshold,
		MajorIterations:   s.MaxIterations,
		FuncEvaluations:   s.FuncEvaluations,
	}

	res, err := optimize.Minimize(problem, []float64{seed[0], seed[1]}, settings, &optimize.BFGS{})
	if res == nil || len(res.X) != 2 || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return minimizeResult{
			Position: seed,
			Value:    obj.Value([]float64{seed[0], seed[1]}),
		}
	}

	converged := err == nil && !res.Status.Early()
	if !converged && res.Status == optimize.Failure {
		grad := make([]float64, 2)
		obj.Gradient(grad, res.X)
		converged = floats.Norm(grad, math.Inf(1)) < stationaryTolerance
	}

	return minimizeResult{
		Position:   orb.Point{res.X[0], res.X[1]},
		Value:      res.F,
		Iterations: res.Stats.MajorIterations,
		Converged:  converged,
	}
}
