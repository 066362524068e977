package score

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ppiankov/rflocate/internal/model"
)

// Input bundles what the scorer inspects
type Input struct {
	Readings        []model.StationReading
	Detection       model.AnomalyReport
	Location        *model.LocationEstimate // nil when locating failed
	LocationVerdict *model.Verdict
}

// Scorer turns detector and engine output into transparent diagnostic signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate generates diagnostic signals. It never changes the estimate.
func (s *Scorer) Calculate(in Input) []model.Signal {
	var signals []model.Signal

	// 1. Share of stations the detector discarded
	signals = append(signals, s.anomalyRate(in.Detection))

	// 2. Whether the detectors agreed on what they flagged
	if sig, ok := s.detectorAgreement(in.Detection); ok {
		signals = append(signals, sig)
	}

	if in.Location == nil {
		return signals
	}

	// 3. Optimiser convergence
	signals = append(signals, s.convergence(in.Location))

	// 4. Method selection margin
	signals = append(signals, s.methodSelection(in.Location))

	// 5. Refinement
	if sig, ok := s.refinement(in.Location); ok {
		signals = append(signals, sig)
	}

	// 6. Residual per station
	signals = append(signals, s.residual(in.Location))

	// 7. Station geometry around the estimate
	if sig, ok := s.geometry(in.Readings, in.Detection, in.Location); ok {
		signals = append(signals, sig)
	}

	// 8. Plausibility checks that failed
	if in.LocationVerdict != nil && !in.LocationVerdict.Valid {
		signals = append(signals, model.Signal{
			Type:        model.SignalBounds,
			Severity:    model.SeverityCritical,
			Description: "Estimate failed plausibility check: " + in.LocationVerdict.Reason,
			Data: map[string]interface{}{
				"x": in.Location.Position.X,
				"y": in.Location.Position.Y,
			},
		})
	}

	return signals
}

// anomalyRate reports the fraction of stations flagged as anomalous
func (s *Scorer) anomalyRate(det model.AnomalyReport) model.Signal {
	total := det.Statistics.TotalStations
	if total == 0 {
		total = len(det.AnomalyIndices) + len(det.NormalIndices)
	}
	if det.DetectionMethod == model.DetectionInsufficientData {
		return model.Signal{
			Type:        model.SignalAnomalyRate,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Anomaly detection skipped: only %d stations", total),
			Data: map[string]interface{}{
				"total":    total,
				"detected": 0,
			},
		}
	}

	flagged := len(det.AnomalyIndices)
	ratio := 0.0
	if total > 0 {
		ratio = float64(flagged) / float64(total)
	}

	severity := model.SeverityInfo
	if ratio >= 0.3 {
		severity = model.SeverityCritical
	} else if ratio > 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalAnomalyRate,
		Severity:    severity,
		Description: fmt.Sprintf("Anomalous stations: %d/%d (%.0f%%)", flagged, total, ratio*100),
		Data: map[string]interface{}{
			"anomalies": flagged,
			"total":     total,
			"ratio":     ratio,
			"formula":   "anomaly_count / total",
		},
	}
}

// detectorAgreement reports the mean vote share of flagged stations
func (s *Scorer) detectorAgreement(det model.AnomalyReport) (model.Signal, bool) {
	if len(det.AnomalyDetails) == 0 {
		return model.Signal{}, false
	}

	var sum float64
	unanimous := 0
	for _, d := range det.AnomalyDetails {
		sum += d.Confidence
		if d.Confidence >= 100 {
			unanimous++
		}
	}
	mean := sum / float64(len(det.AnomalyDetails))

	severity := model.SeverityInfo
	if mean < 50 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalDetectorAgreement,
		Severity:    severity,
		Description: fmt.Sprintf("Detector agreement: %.1f%% mean vote share, %d unanimous", mean, unanimous),
		Data: map[string]interface{}{
			"mean_confidence": mean,
			"unanimous":       unanimous,
			"flagged":         len(det.AnomalyDetails),
			"per_method":      countPerMethod(det.MethodResults),
			"formula":         "mean(votes / 3 * 100)",
		},
	}, true
}

// convergence reports how many iterative estimators converged
func (s *Scorer) convergence(loc *model.LocationEstimate) model.Signal {
	iterative, converged := 0, 0
	var failed []string
	for _, r := range loc.AllResults {
		if r.Method == model.MethodCentroid {
			continue
		}
		iterative++
		if r.Converged {
			converged++
		} else {
			failed = append(failed, r.Method)
		}
	}

	severity := model.SeverityInfo
	description := fmt.Sprintf("All %d iterative estimators converged", iterative)
	switch {
	case converged == 0 && iterative > 0:
		severity = model.SeverityCritical
		description = "No iterative estimator converged; estimate falls back to the weighted centroid"
	case converged < iterative:
		severity = model.SeverityWarning
		description = fmt.Sprintf("%d/%d iterative estimators converged", converged, iterative)
	}

	return model.Signal{
		Type:        model.SignalConvergence,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"converged": converged,
			"iterative": iterative,
			"failed":    failed,
		},
	}
}

// methodSelection reports which estimator won and how close the runner-up was
func (s *Scorer) methodSelection(loc *model.LocationEstimate) model.Signal {
	spread := 0.0
	if len(loc.AllResults) > 1 {
		for i := range loc.AllResults {
			for j := i + 1; j < len(loc.AllResults); j++ {
				a, b := loc.AllResults[i].Position, loc.AllResults[j].Position
				spread = math.Max(spread, math.Hypot(a.X-b.X, a.Y-b.Y))
			}
		}
	}

	severity := model.SeverityInfo
	if spread > 20 {
		severity = model.SeverityWarning
	}

	residuals := make(map[string]float64, len(loc.AllResults))
	for _, r := range loc.AllResults {
		residuals[r.Method] = r.Residual
	}

	return model.Signal{
		Type:        model.SignalMethodSelection,
		Severity:    severity,
		Description: fmt.Sprintf("Selected %s; estimators disagree by up to %.1f km", loc.MethodUsed, spread),
		Data: map[string]interface{}{
			"method":    loc.MethodUsed,
			"spread_km": spread,
			"residuals": residuals,
			"formula":   "min(0.7*residual + 0.3*(100-confidence)), weighted_least_squares x0.9 when stations >= 6",
		},
	}
}

// refinement reports stations dropped by outlier-driven refitting
func (s *Scorer) refinement(loc *model.LocationEstimate) (model.Signal, bool) {
	if len(loc.ExcludedOutliers) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalRefinement,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Refinement dropped %d poorly fitting station(s) after detection", len(loc.ExcludedOutliers)),
		Data: map[string]interface{}{
			"excluded_outliers": loc.ExcludedOutliers,
			"method":            loc.MethodUsed,
		},
	}, true
}

// residual reports the RMS power error per fitted station
func (s *Scorer) residual(loc *model.LocationEstimate) model.Signal {
	used := loc.ValidStationsCount - len(loc.ExcludedOutliers)
	rms := 0.0
	if used > 0 {
		rms = math.Sqrt(loc.Residual / float64(used))
	}

	severity := model.SeverityInfo
	if rms >= 6 {
		severity = model.SeverityCritical
	} else if rms >= 3 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalResidual,
		Severity:    severity,
		Description: fmt.Sprintf("RMS power error: %.2f dB over %d stations", rms, used),
		Data: map[string]interface{}{
			"residual": loc.Residual,
			"stations": used,
			"rms_db":   rms,
			"formula":  "sqrt(residual / stations)",
		},
	}
}

// geometry reports whether the estimate sits inside the area spanned by the
// stations used, and how far the nearest one is
func (s *Scorer) geometry(readings []model.StationReading, det model.AnomalyReport, loc *model.LocationEstimate) (model.Signal, bool) {
	indices := det.NormalIndices
	if len(indices) == 0 {
		return model.Signal{}, false
	}

	var stations orb.MultiPoint
	for _, idx := range indices {
		if idx >= 0 && idx < len(readings) {
			stations = append(stations, orb.Point{readings[idx].X, readings[idx].Y})
		}
	}
	if len(stations) == 0 {
		return model.Signal{}, false
	}

	p := orb.Point{loc.Position.X, loc.Position.Y}
	inside := stations.Bound().Contains(p)
	nearest := planar.DistanceFrom(stations, p)

	severity := model.SeverityInfo
	description := fmt.Sprintf("Estimate inside the station array, nearest station %.1f km", nearest)
	if !inside {
		severity = model.SeverityWarning
		description = fmt.Sprintf("Estimate outside the station array (extrapolated), nearest station %.1f km", nearest)
	}

	return model.Signal{
		Type:        model.SignalGeometry,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"inside_array":       inside,
			"nearest_station_km": nearest,
		},
	}, true
}

func countPerMethod(results map[string][]int) map[string]int {
	out := make(map[string]int, len(results))
	for m, idx := range results {
		out[m] = len(idx)
	}
	return out
}
