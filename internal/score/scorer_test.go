package score

import (
	"testing"

	"github.com/ppiankov/rflocate/internal/model"
)

func findSignal(signals []model.Signal, typ model.SignalType) *model.Signal {
	for i := range signals {
		if signals[i].Type == typ {
			return &signals[i]
		}
	}
	return nil
}

func squareReadings() []model.StationReading {
	return []model.StationReading{
		{StationID: 1, X: -50, Y: -50, Power: 60},
		{StationID: 2, X: 50, Y: -50, Power: 60},
		{StationID: 3, X: 50, Y: 50, Power: 60},
		{StationID: 4, X: -50, Y: 50, Power: 90},
		{StationID: 5, X: 0, Y: -50, Power: 62},
	}
}

func cleanLocation() *model.LocationEstimate {
	return &model.LocationEstimate{
		Position:           model.Position{X: 5, Y: 5},
		Confidence:         98,
		Residual:           4,
		MethodUsed:         model.MethodLeastSquares,
		ValidStationsCount: 4,
		ExcludedOutliers:   []int{},
		AllResults: []model.EstimatorResult{
			{Method: model.MethodLeastSquares, Position: model.Position{X: 5, Y: 5}, Converged: true},
			{Method: model.MethodWeightedLeastSquares, Position: model.Position{X: 5.5, Y: 5}, Converged: true},
			{Method: model.MethodCentroid, Position: model.Position{X: 8, Y: 9}, Converged: true},
		},
	}
}

func TestScorer_Calculate_CleanRun(t *testing.T) {
	scorer := NewScorer()

	det := model.AnomalyReport{
		AnomalyIndices:  []int{3},
		NormalIndices:   []int{0, 1, 2, 4},
		DetectionMethod: model.DetectionCombined,
		AnomalyDetails:  []model.AnomalyDetail{{Index: 3, Confidence: 100}},
		MethodResults:   map[string][]int{"z_score": {3}, "iqr": {3}, "spatial": {3}},
		Statistics:      model.PowerStatistics{TotalStations: 5},
	}

	signals := scorer.Calculate(Input{
		Readings:  squareReadings(),
		Detection: det,
		Location:  cleanLocation(),
	})

	rate := findSignal(signals, model.SignalAnomalyRate)
	if rate == nil {
		t.Fatal("Expected anomaly rate signal")
	}
	if rate.Severity != model.SeverityWarning {
		t.Errorf("Expected warning for 1/5 anomalies, got %s", rate.Severity)
	}
	if rate.Data["anomalies"] != 1 {
		t.Errorf("Expected 1 anomaly in data, got %v", rate.Data["anomalies"])
	}

	agree := findSignal(signals, model.SignalDetectorAgreement)
	if agree == nil || agree.Severity != model.SeverityInfo {
		t.Errorf("Expected info agreement signal, got %+v", agree)
	}

	conv := findSignal(signals, model.SignalConvergence)
	if conv == nil || conv.Severity != model.SeverityInfo {
		t.Errorf("Expected info convergence signal, got %+v", conv)
	}

	res := findSignal(signals, model.SignalResidual)
	if res == nil {
		t.Fatal("Expected residual signal")
	}
	if rms := res.Data["rms_db"].(float64); rms != 1 {
		t.Errorf("Expected RMS 1 dB, got %v", rms)
	}

	geo := findSignal(signals, model.SignalGeometry)
	if geo == nil {
		t.Fatal("Expected geometry signal")
	}
	if geo.Data["inside_array"] != true {
		t.Error("Expected estimate inside the array")
	}

	if findSignal(signals, model.SignalRefinement) != nil {
		t.Error("Expected no refinement signal")
	}
	if findSignal(signals, model.SignalBounds) != nil {
		t.Error("Expected no bounds signal")
	}
}

func TestScorer_Calculate_NoLocation(t *testing.T) {
	scorer := NewScorer()

	det := model.AnomalyReport{
		NormalIndices:   []int{0, 1},
		DetectionMethod: model.DetectionInsufficientData,
		Statistics:      model.PowerStatistics{TotalStations: 2},
	}

	signals := scorer.Calculate(Input{Detection: det})

	if len(signals) != 1 {
		t.Fatalf("Expected only the anomaly rate signal, got %d", len(signals))
	}
	if signals[0].Severity != model.SeverityWarning {
		t.Errorf("Expected warning for skipped detection, got %s", signals[0].Severity)
	}
}

func TestScorer_Calculate_Degraded(t *testing.T) {
	scorer := NewScorer()

	loc := cleanLocation()
	loc.Position = model.Position{X: 120, Y: 0}
	loc.Residual = 400
	loc.MethodUsed = model.RefinedPrefix + model.MethodCentroid
	loc.ExcludedOutliers = []int{2}
	loc.AllResults[0].Converged = false
	loc.AllResults[1].Converged = false

	det := model.AnomalyReport{
		NormalIndices:   []int{0, 1, 2, 4},
		DetectionMethod: model.DetectionCombined,
		Statistics:      model.PowerStatistics{TotalStations: 5},
	}
	verdict := &model.Verdict{Valid: false, Reason: "outside bounds"}

	signals := scorer.Calculate(Input{
		Readings:        squareReadings(),
		Detection:       det,
		Location:        loc,
		LocationVerdict: verdict,
	})

	if s := findSignal(signals, model.SignalConvergence); s == nil || s.Severity != model.SeverityCritical {
		t.Errorf("Expected critical convergence signal, got %+v", s)
	}
	if s := findSignal(signals, model.SignalRefinement); s == nil {
		t.Error("Expected refinement signal")
	}
	if s := findSignal(signals, model.SignalResidual); s == nil || s.Severity != model.SeverityCritical {
		t.Errorf("Expected critical residual signal, got %+v", s)
	}
	if s := findSignal(signals, model.SignalGeometry); s == nil || s.Severity != model.SeverityWarning {
		t.Errorf("Expected geometry warning for extrapolated estimate, got %+v", s)
	}
	if s := findSignal(signals, model.SignalBounds); s == nil || s.Severity != model.SeverityCritical {
		t.Errorf("Expected critical bounds signal, got %+v", s)
	}
	if s := findSignal(signals, model.SignalAnomalyRate); s == nil || s.Severity != model.SeverityInfo {
		t.Errorf("Expected info anomaly rate with nothing flagged, got %+v", s)
	}
}
