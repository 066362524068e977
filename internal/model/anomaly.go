package model

// Detection method tags
const (
	DetectionInsufficientData = "insufficient_data"
	DetectionCombined         = "combined"
)

// Anomaly classifications
const (
	ClassHighPower = "high_power"
	ClassLowPower  = "low_power"
	ClassOutlier   = "outlier"
)

// AnomalyReport partitions readings into normal and anomalous stations
type AnomalyReport struct {
	AnomalyIndices  []int            `json:"anomaly_indices" yaml:"anomaly_indices"`   // Positions into the input slice
	NormalIndices   []int            `json:"normal_indices" yaml:"normal_indices"`     // Complement of AnomalyIndices
	AnomalyDetails  []AnomalyDetail  `json:"anomaly_details" yaml:"anomaly_details"`   // One entry per anomaly
	Statistics      PowerStatistics  `json:"statistics" yaml:"statistics"`             // Power distribution summary
	DetectionMethod string           `json:"detection_method" yaml:"detection_method"` // insufficient_data or combined
	MethodResults   map[string][]int `json:"method_results" yaml:"method_results"`     // Indices each detector flagged
	Scores          map[int]float64  `json:"scores,omitempty" yaml:"scores,omitempty"` // Weighted vote per flagged index
	Summary         string           `json:"summary" yaml:"summary"`
}

// AnomalyDetail describes one flagged station
type AnomalyDetail struct {
	Index          int             `json:"index" yaml:"index"`
	StationID      int             `json:"station_id" yaml:"station_id"`
	Name           string          `json:"station_name" yaml:"station_name"`
	Power          float64         `json:"power" yaml:"power"`
	Classification string          `json:"anomaly_type" yaml:"anomaly_type"`           // high_power, low_power, outlier
	Confidence     float64         `json:"confidence" yaml:"confidence"`               // votes / 3 * 100
	Score          float64         `json:"score" yaml:"score"`                         // Weighted vote
	Votes          map[string]bool `json:"detection_methods" yaml:"detection_methods"` // Per-detector vote
}

// PowerStatistics summarises the measured power distribution
type PowerStatistics struct {
	TotalStations   int     `json:"total_stations" yaml:"total_stations"`
	NormalStations  int     `json:"normal_stations" yaml:"normal_stations"`
	AnomalyStations int     `json:"anomaly_stations" yaml:"anomaly_stations"`
	PowerMean       float64 `json:"power_mean" yaml:"power_mean"`
	PowerStd        float64 `json:"power_std" yaml:"power_std"`
	PowerMedian     float64 `json:"power_median" yaml:"power_median"`
	NormalPowerMean float64 `json:"normal_power_mean" yaml:"normal_power_mean"`
	NormalPowerStd  float64 `json:"normal_power_std" yaml:"normal_power_std"`
}
