package detect

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/rflocate/internal/logging"
	"github.com/ppiankov/rflocate/internal/model"
)

// Standard deviations below this are treated as zero spread
const degenerateStd = 1e-12

// Config holds detector thresholds
type Config struct {
	MinStations      int                // Below this every reading is normal
	ZThreshold       float64            // |z| above this is flagged
	IQRMultiplier    float64            // Fence width in IQRs
	SpatialThreshold float64            // Standardised deviation of the mean gradient
	VoteThreshold    float64            // Weighted vote needed to become an anomaly
	Weights          map[string]float64 // Per-method vote weight
	MaxNormalFloor   int                // Upper bound on the normal-station floor
}

// DefaultConfig returns the standard detector thresholds
func DefaultConfig() Config {
	return Config{
		MinStations:      4,
		ZThreshold:       2.5,
		IQRMultiplier:    1.5,
		SpatialThreshold: 2.0,
		VoteThreshold:    0.3,
		Weights: map[string]float64{
			MethodZScore:  0.35,
			MethodIQR:     0.35,
			MethodSpatial: 0.30,
		},
		MaxNormalFloor: 5,
	}
}

// Detector flags unreliable station readings by ensemble voting
type Detector struct {
	config Config
	log    logging.Logger
}

// NewDetector creates a detector. A nil logger disables logging.
func NewDetector(cfg Config, log logging.Logger) *Detector {
	if log == nil {
		log = logging.Noop()
	}
	return &Detector{config: cfg, log: log}
}

// Detect partitions readings into normal and anomalous indices.
// Malformed readings are rejected with model.ErrInvalidInput.
func (d *Detector) Detect(readings []model.StationReading) (model.AnomalyReport, error) {
	return d.DetectContext(context.Background(), readings)
}

// DetectContext is Detect with a context for log correlation
func (d *Detector) DetectContext(ctx context.Context, readings []model.StationReading) (model.AnomalyReport, error) {
	if err := model.ValidateReadings(readings); err != nil {
		return model.AnomalyReport{}, err
	}

	n := len(readings)
	powers := make([]float64, n)
	for i, r := range readings {
		powers[i] = r.Power
	}

	if n < d.config.MinStations {
		d.log.Debug(ctx, "too few readings for anomaly detection",
			logging.Int("readings", n), logging.Int("required", d.config.MinStations))
		return model.AnomalyReport{
			AnomalyIndices:  []int{},
			NormalIndices:   seq(n),
			AnomalyDetails:  []model.AnomalyDetail{},
			Statistics:      statistics(powers, nil),
			DetectionMethod: model.DetectionInsufficientData,
			MethodResults:   map[string][]int{},
			Summary:         fmt.Sprintf("Insufficient data: at least %d stations required", d.config.MinStations),
		}, nil
	}

	zHits := zScoreAnomalies(powers, d.config.ZThreshold)
	iqrHits := iqrAnomalies(powers, d.config.IQRMultiplier)
	spatialHits := spatialAnomalies(readings, d.config.SpatialThreshold)
	results := map[string][]int{
		MethodZScore:  nonNil(zHits),
		MethodIQR:     nonNil(iqrHits),
		MethodSpatial: nonNil(corroborated(spatialHits, zHits, iqrHits)),
	}
	for _, m := range methodOrder {
		d.log.Debug(ctx, "detector vote", logging.String("method", m), logging.Any("flagged", results[m]))
	}

	scores := d.weightedScores(results)
	anomalies := d.combine(scores, n)

	isAnomaly := make(map[int]bool, len(anomalies))
	for _, idx := range anomalies {
		isAnomaly[idx] = true
	}
	normal := make([]int, 0, n-len(anomalies))
	for i := 0; i < n; i++ {
		if !isAnomaly[i] {
			normal = append(normal, i)
		}
	}

	_, std := meanStd(powers)
	med := median(powers)
	details := make([]model.AnomalyDetail, 0, len(anomalies))
	flaggedScores := make(map[int]float64, len(anomalies))
	for _, idx := range anomalies {
		votes := make(map[string]bool, len(methodOrder))
		count := 0
		for _, m := range methodOrder {
			hit := contains(results[m], idx)
			votes[m] = hit
			if hit {
				count++
			}
		}
		r := readings[idx]
		details = append(details, model.AnomalyDetail{
			Index:          idx,
			StationID:      r.StationID,
			Name:           r.Name,
			Power:          r.Power,
			Classification: classify(r.Power, med, std),
			Confidence:     math.Round(float64(count)/float64(len(methodOrder))*100*10) / 10,
			Score:          scores[idx],
			Votes:          votes,
		})
		flaggedScores[idx] = scores[idx]
	}

	d.log.Debug(ctx, "anomaly detection complete",
		logging.Int("anomalies", len(anomalies)), logging.Int("normal", len(normal)))

	return model.AnomalyReport{
		AnomalyIndices:  anomalies,
		NormalIndices:   normal,
		AnomalyDetails:  details,
		Statistics:      statistics(powers, isAnomaly),
		DetectionMethod: model.DetectionCombined,
		MethodResults:   results,
		Scores:          flaggedScores,
		Summary:         fmt.Sprintf("Detected %d anomalous stations, %d normal stations", len(anomalies), len(normal)),
	}, nil
}

// weightedScores sums the weight of every method that flagged each index
func (d *Detector) weightedScores(results map[string][]int) map[int]float64 {
	scores := make(map[int]float64)
	for _, m := range methodOrder {
		for _, idx := range results[m] {
			scores[idx] += d.config.Weights[m]
		}
	}
	return scores
}

// combine applies the vote threshold, the anomaly cap and the normal floor.
// The result is sorted by index.
func (d *Detector) combine(scores map[int]float64, total int) []int {
	candidates := make([]int, 0, len(scores))
	for idx, s := range scores {
		if s >= d.config.VoteThreshold {
			candidates = append(candidates, idx)
		}
	}

	// Highest score first, ties by original index
	sort.Slice(candidates, func(a, b int) bool {
		sa, sb := scores[candidates[a]], scores[candidates[b]]
		if sa != sb {
			return sa > sb
		}
		return candidates[a] < candidates[b]
	})

	maxAnomalies := total / 3
	if maxAnomalies < 1 {
		maxAnomalies = 1
	}
	if len(candidates) > maxAnomalies {
		candidates = candidates[:maxAnomalies]
	}

	minNormal := total - 1
	if d.config.MaxNormalFloor < minNormal {
		minNormal = d.config.MaxNormalFloor
	}
	if total-len(candidates) < minNormal {
		allowed := total - minNormal
		if allowed > 0 {
			candidates = candidates[:allowed]
		} else {
			candidates = candidates[:0]
		}
	}

	sort.Ints(candidates)
	return candidates
}

func statistics(powers []float64, anomalous map[int]bool) model.PowerStatistics {
	normal := make([]float64, 0, len(powers))
	for i, p := range powers {
		if !anomalous[i] {
			normal = append(normal, p)
		}
	}

	mean, std := meanStd(powers)
	normalMean, normalStd := meanStd(normal)
	med := 0.0
	if len(powers) > 0 {
		med = median(powers)
	}

	return model.PowerStatistics{
		TotalStations:   len(powers),
		NormalStations:  len(normal),
		AnomalyStations: len(powers) - len(normal),
		PowerMean:       mean,
		PowerStd:        std,
		PowerMedian:     med,
		NormalPowerMean: normalMean,
		NormalPowerStd:  normalStd,
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}
