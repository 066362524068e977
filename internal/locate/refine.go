package locate

import (
	"sort"

	"github.com/paulmach/orb"
)

const (
	refineConfidenceBelow = 70.0
	refineMinStations     = 5
	refineMaxDrops        = 2
	minFitStations        = 3
)

// refinement is the outcome of outlier-driven refitting
type refinement struct {
	Fit     Fit
	Dropped []int // positions into the fitted station slice
}

// refine drops the k worst-predicted stations (k = 1..min(2, n-3)) and refits
// with weighted least squares. It returns the best refit whose confidence
// beats the original, or false when none does.
func (e *Engine) refine(stations []orb.Point, powers []float64, chosen Fit) (refinement, bool) {
	n := len(stations)
	if chosen.Confidence >= refineConfidenceBelow || n < refineMinStations {
		return refinement{}, false
	}

	obj := objective{model: e.model, stations: stations, powers: powers}
	errs := obj.residuals(chosen.Position)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Largest error first, ties by position
	sort.SliceStable(order, func(a, b int) bool {
		return errs[order[a]] > errs[order[b]]
	})

	maxDrops := refineMaxDrops
	if n-minFitStations < maxDrops {
		maxDrops = n - minFitStations
	}

	best := refinement{Fit: chosen}
	improved := false
	wls := WeightedLeastSquares{Model: e.model, Settings: e.settings}

	for k := 1; k <= maxDrops; k++ {
		drop := make(map[int]bool, k)
		for _, idx := range order[:k] {
			drop[idx] = true
		}

		keptStations := make([]orb.Point, 0, n-k)
		keptPowers := make([]float64, 0, n-k)
		for i := range stations {
			if !drop[i] {
				keptStations = append(keptStations, stations[i])
				keptPowers = append(keptPowers, powers[i])
			}
		}

		refit := wls.Fit(keptStations, keptPowers)
		if refit.Confidence > best.Fit.Confidence {
			dropped := append([]int(nil), order[:k]...)
			sort.Ints(dropped)
			best = refinement{Fit: refit, Dropped: dropped}
			improved = true
		}
	}

	return best, improved
}
