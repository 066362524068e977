package locate

import (
	"fmt"

	"github.com/ppiankov/rflocate/internal/model"
)

// Quality and reliability labels
const (
	QualityExcellent = "EXCELLENT"
	QualityGood      = "GOOD"
	QualityFair      = "FAIR"
	QualityPoor      = "POOR"

	ReliabilityHigh    = "HIGH"
	ReliabilityMedium  = "MEDIUM"
	ReliabilityLow     = "LOW"
	ReliabilityVeryLow = "VERY_LOW"
)

// AssessQuality labels an estimate from its confidence and station count
func AssessQuality(confidence, residual float64, stations int) model.QualityAssessment {
	var quality, reliability string
	switch {
	case confidence >= 85:
		quality, reliability = QualityExcellent, ReliabilityHigh
	case confidence >= 70:
		quality, reliability = QualityGood, ReliabilityMedium
	case confidence >= 50:
		quality, reliability = QualityFair, ReliabilityLow
	default:
		quality, reliability = QualityPoor, ReliabilityVeryLow
	}

	if stations < 4 {
		reliability = ReliabilityVeryLow
	} else if stations >= 6 && (quality == QualityGood || quality == QualityExcellent) {
		reliability = ReliabilityHigh
	}

	return model.QualityAssessment{
		Quality:         quality,
		Reliability:     reliability,
		ConfidenceLevel: confidence,
		ResidualError:   residual,
		StationsUsed:    stations,
		Assessment:      fmt.Sprintf("%s quality with %s reliability", quality, reliability),
	}
}
