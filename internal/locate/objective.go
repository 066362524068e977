package locate

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/ppiankov/rflocate/internal/model"
)

// objective is the (optionally weighted) sum of squared power errors of a
// candidate emitter position under the path-loss model
type objective struct {
	model    model.PathLossModel
	stations []orb.Point
	powers   []float64
	weights  []float64 // nil means unit weights
}

func (o objective) weight(i int) float64 {
	if o.weights == nil {
		return 1
	}
	return o.weights[i]
}

// Value evaluates the objective at x = [px, py]
func (o objective) Value(x []float64) float64 {
	var sum float64
	for i, s := range o.stations {
		d := math.Hypot(x[0]-s[0], x[1]-s[1])
		e := o.model.PredictPower(d) - o.powers[i]
		sum += o.weight(i) * e * e
	}
	return sum
}

// Gradient writes the analytic gradient at x into grad.
// Stations closer than D0 contribute nothing since the model is flat there.
func (o objective) Gradient(grad, x []float64) {
	grad[0], grad[1] = 0, 0
	k := 10 * o.model.N / math.Ln10
	for i, s := range o.stations {
		dx, dy := x[0]-s[0], x[1]-s[1]
		d2 := dx*dx + dy*dy
		if d2 <= o.model.D0*o.model.D0 {
			continue
		}
		e := o.model.PredictPower(math.Sqrt(d2)) - o.powers[i]
		// d(pred)/dx = -k * dx / d^2
		c := -2 * o.weight(i) * e * k / d2
		grad[0] += c * dx
		grad[1] += c * dy
	}
}

// residuals returns |pred - meas| per station at p
func (o objective) residuals(p orb.Point) []float64 {
	out := make([]float64, len(o.stations))
	for i, s := range o.stations {
		d := math.Hypot(p[0]-s[0], p[1]-s[1])
		out[i] = math.Abs(o.model.PredictPower(d) - o.powers[i])
	}
	return out
}
