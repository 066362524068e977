package detect

import (
	"math"

	"github.com/ppiankov/rflocate/internal/model"
)

// Detector method names, used as keys in AnomalyReport.MethodResults
const (
	MethodZScore  = "z_score"
	MethodIQR     = "iqr"
	MethodSpatial = "spatial"
)

// methodOrder is the fixed order detectors run and vote in
var methodOrder = []string{MethodZScore, MethodIQR, MethodSpatial}

// zScoreAnomalies flags powers whose population z-score exceeds threshold
func zScoreAnomalies(powers []float64, threshold float64) []int {
	mean, std := meanStd(powers)
	if std < degenerateStd {
		return nil
	}

	var flagged []int
	for i, p := range powers {
		if math.Abs(p-mean)/std > threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// iqrAnomalies flags powers outside [Q1 - k*IQR, Q3 + k*IQR]
func iqrAnomalies(powers []float64, k float64) []int {
	q1 := percentile(powers, 25)
	q3 := percentile(powers, 75)
	iqr := q3 - q1
	lower := q1 - k*iqr
	upper := q3 + k*iqr

	var flagged []int
	for i, p := range powers {
		if p < lower || p > upper {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// spatialAnomalies compares each station's mean power gradient to its peers
// (|P_i - P_j| / dist(i, j)) against the distribution of that mean across all
// stations. Co-located pairs are skipped.
func spatialAnomalies(readings []model.StationReading, threshold float64) []int {
	means := make([]float64, 0, len(readings))
	owners := make([]int, 0, len(readings))

	for i, a := range readings {
		var sum float64
		var count int
		for j, b := range readings {
			if i == j {
				continue
			}
			dist := math.Hypot(a.X-b.X, a.Y-b.Y)
			if dist > 0 {
				sum += math.Abs(a.Power-b.Power) / dist
				count++
			}
		}
		if count > 0 {
			means = append(means, sum/float64(count))
			owners = append(owners, i)
		}
	}

	if len(means) < 2 {
		return nil
	}
	mu, sigma := meanStd(means)
	if sigma < degenerateStd {
		return nil
	}

	var flagged []int
	for k, m := range means {
		if math.Abs(m-mu)/sigma > threshold {
			flagged = append(flagged, owners[k])
		}
	}
	return flagged
}

// corroborated keeps the spatial hits that a power-based method also flagged.
// On clean data the station nearest the emitter has the steepest gradient, so
// a spatial hit never counts on its own.
func corroborated(spatial []int, power ...[]int) []int {
	var kept []int
	for _, idx := range spatial {
		for _, hits := range power {
			if contains(hits, idx) {
				kept = append(kept, idx)
				break
			}
		}
	}
	return kept
}

// classify labels a flagged power relative to the whole population
func classify(power, med, std float64) string {
	switch {
	case power > med+2*std:
		return model.ClassHighPower
	case power < med-2*std:
		return model.ClassLowPower
	default:
		return model.ClassOutlier
	}
}
