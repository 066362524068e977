package model

// Estimator method names, in enumeration order
const (
	MethodLeastSquares         = "least_squares"
	MethodWeightedLeastSquares = "weighted_least_squares"
	MethodCentroid             = "centroid"

	RefinedPrefix = "refined_"
)

// Coordinate systems reported with an estimate
const (
	CoordinateLocal      = "local"
	CoordinateGeographic = "geographic"
)

// Position is a point in the planar frame, annotated with geographic coordinates
type Position struct {
	X   float64 `json:"x" yaml:"x"`     // km east of origin
	Y   float64 `json:"y" yaml:"y"`     // km north of origin
	Lat float64 `json:"lat" yaml:"lat"` // degrees
	Lon float64 `json:"lon" yaml:"lon"` // degrees
}

// EstimatorResult is the raw output of one estimator
type EstimatorResult struct {
	Method     string   `json:"method" yaml:"method"`
	Position   Position `json:"position" yaml:"position"`
	Residual   float64  `json:"residual" yaml:"residual"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Converged  bool     `json:"converged" yaml:"converged"`
	Iterations int      `json:"iterations" yaml:"iterations"`
}

// LocationEstimate is the final output of the location engine
type LocationEstimate struct {
	Position           Position          `json:"position" yaml:"position"`
	Confidence         float64           `json:"confidence" yaml:"confidence"` // [0, 100]
	Residual           float64           `json:"residual" yaml:"residual"`     // >= 0
	MethodUsed         string            `json:"method_used" yaml:"method_used"`
	AllResults         []EstimatorResult `json:"all_results" yaml:"all_results"`
	ValidStationsCount int               `json:"valid_stations_count" yaml:"valid_stations_count"`
	ExcludedStations   []int             `json:"excluded_stations" yaml:"excluded_stations"` // Indices not offered to the fit
	ExcludedOutliers   []int             `json:"excluded_outliers" yaml:"excluded_outliers"` // Indices dropped by refinement
	CoordinateSystem   string            `json:"coordinate_system" yaml:"coordinate_system"`
	Quality            QualityAssessment `json:"quality_assessment" yaml:"quality_assessment"`
}

// QualityAssessment labels an estimate for human consumption
type QualityAssessment struct {
	Quality         string  `json:"quality" yaml:"quality"`                   // EXCELLENT, GOOD, FAIR, POOR
	Reliability     string  `json:"reliability" yaml:"reliability"`           // HIGH, MEDIUM, LOW, VERY_LOW
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"` // Copy of the estimate confidence
	ResidualError   float64 `json:"residual_error" yaml:"residual_error"`
	StationsUsed    int     `json:"stations_used" yaml:"stations_used"`
	Assessment      string  `json:"assessment" yaml:"assessment"`
}
