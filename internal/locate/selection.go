package locate

import (
	"math"

	"github.com/ppiankov/rflocate/internal/model"
)

// wlsPreferenceStations is the station count from which weighted least squares
// gets a 10% score advantage
const wlsPreferenceStations = 6

// selectionScore ranks a fit; lower is better
func selectionScore(method string, f Fit, count int, skipFailed bool) float64 {
	if skipFailed && !f.Converged {
		return math.Inf(1)
	}
	score := 0.7*f.Residual + 0.3*(100-f.Confidence)
	if count >= wlsPreferenceStations && method == model.MethodWeightedLeastSquares {
		score *= 0.9
	}
	return score
}

// selectBest returns the index of the winning fit and every score.
// Non-converged fits are excluded unless none converged. Ties keep the
// earlier estimator.
func selectBest(methods []string, fits []Fit, count int) (int, []float64) {
	anyConverged := false
	for _, f := range fits {
		if f.Converged {
			anyConverged = true
			break
		}
	}

	scores := make([]float64, len(fits))
	best := 0
	for i, f := range fits {
		scores[i] = selectionScore(methods[i], f, count, anyConverged)
		if scores[i] < scores[best] {
			best = i
		}
	}
	return best, scores
}
