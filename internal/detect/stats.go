package detect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// meanStd returns the population mean and standard deviation
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// percentile returns the p-th percentile (0-100) using linear interpolation
// between the closest ranks of the sorted data.
// gonum's stat.Quantile only offers empirical and Hyndman-Fan type 4
// estimators, which disagree with this definition for small samples.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func median(x []float64) float64 {
	return percentile(x, 50)
}
