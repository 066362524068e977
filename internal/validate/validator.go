package validate

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ppiankov/rflocate/internal/geo"
	"github.com/ppiankov/rflocate/internal/model"
)

const (
	// maxAnomalyShare is the largest fraction of anomalous stations a detection may report
	maxAnomalyShare = 0.5
	// minNormalStations is the fewest normal stations a usable detection leaves
	minNormalStations = 3
)

// Validator applies plausibility checks to detector and engine output.
// Checks are advisory; callers decide what to do with an invalid verdict.
type Validator struct {
	bounds      orb.Bound
	minDistance float64
}

// NewValidator creates a validator for the configured area and station clearance
func NewValidator(bounds model.BoundsConfig, minStationDistanceKm float64) *Validator {
	return &Validator{
		bounds:      geo.PlanarBounds(bounds),
		minDistance: minStationDistanceKm,
	}
}

// FromConfig creates a validator from the full configuration
func FromConfig(cfg *model.Config) *Validator {
	return NewValidator(cfg.Bounds, cfg.MinStationDistanceKm)
}

// ValidateDetection checks that a detection leaves enough trustworthy stations
func (v *Validator) ValidateDetection(report model.AnomalyReport) model.Verdict {
	anomalies := len(report.AnomalyIndices)
	total := anomalies + len(report.NormalIndices)

	if anomalies == 0 {
		return model.Verdict{Valid: true, Reason: "no anomalies detected"}
	}
	if float64(anomalies) > float64(total)*maxAnomalyShare {
		return model.Verdict{
			Valid:  false,
			Reason: fmt.Sprintf("too many anomalous stations (%d of %d), detection is likely wrong", anomalies, total),
		}
	}
	if total-anomalies < minNormalStations {
		return model.Verdict{
			Valid:  false,
			Reason: fmt.Sprintf("only %d normal stations, need %d for a reliable fix", total-anomalies, minNormalStations),
		}
	}
	return model.Verdict{Valid: true, Reason: "anomaly detection result is plausible"}
}

// ValidateLocation checks that the estimate lies inside the configured area
// and not on top of a station that contributed to it. Readings must carry
// planar coordinates.
func (v *Validator) ValidateLocation(est *model.LocationEstimate, readings []model.StationReading) model.Verdict {
	if est == nil {
		return model.Verdict{Valid: false, Reason: "no position"}
	}

	p := orb.Point{est.Position.X, est.Position.Y}
	if !v.bounds.Contains(p) {
		return model.Verdict{
			Valid: false,
			Reason: fmt.Sprintf("position (%.2f, %.2f) outside valid area [%.0f, %.0f] x [%.0f, %.0f]",
				p[0], p[1], v.bounds.Min[0], v.bounds.Max[0], v.bounds.Min[1], v.bounds.Max[1]),
		}
	}

	stations := contributing(est, readings)
	if len(stations) > 0 {
		if d := planar.DistanceFrom(stations, p); d < v.minDistance {
			return model.Verdict{
				Valid:  false,
				Reason: fmt.Sprintf("position is %.2f km from a station (minimum %.1f km)", d, v.minDistance),
			}
		}
	}

	return model.Verdict{Valid: true, Reason: "position is plausible"}
}

// contributing returns the planar positions of stations used by the final fit
func contributing(est *model.LocationEstimate, readings []model.StationReading) orb.MultiPoint {
	skip := make(map[int]bool, len(est.ExcludedStations)+len(est.ExcludedOutliers))
	for _, i := range est.ExcludedStations {
		skip[i] = true
	}
	for _, i := range est.ExcludedOutliers {
		skip[i] = true
	}

	var mp orb.MultiPoint
	for i, r := range readings {
		if !skip[i] {
			mp = append(mp, orb.Point{r.X, r.Y})
		}
	}
	return mp
}
