package model

import "time"

// Report represents the complete rflocate run report
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`                     // Unique run identifier (uuid)
	Source      string           `json:"source,omitempty" yaml:"source,omitempty"` // Input file or scenario name
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`             // When the run started
	CompletedAt time.Time        `json:"completed_at" yaml:"completed_at"`         // When the run finished
	Model       PathLossModel    `json:"model" yaml:"model"`                       // Propagation model used
	Readings    []StationReading `json:"readings" yaml:"readings"`                 // Input readings

	Detection        AnomalyReport `json:"detection" yaml:"detection"`                 // Anomaly detector output
	DetectionVerdict Verdict       `json:"detection_verdict" yaml:"detection_verdict"` // Whether detection can be trusted

	Location        *LocationEstimate `json:"location,omitempty" yaml:"location,omitempty"`             // Fitted emitter position
	LocationError   string            `json:"location_error,omitempty" yaml:"location_error,omitempty"` // Why no position was produced
	LocationVerdict *Verdict          `json:"location_verdict,omitempty" yaml:"location_verdict,omitempty"`

	Ranges  []StationRange `json:"ranges,omitempty" yaml:"ranges,omitempty"` // Model-implied distance per station
	Signals []Signal       `json:"signals" yaml:"signals"`                   // Diagnostic signals with transparent data

	LLM *LLMSummary `json:"llm,omitempty" yaml:"llm,omitempty"` // Optional LLM summary (separate, never affects numbers)
}

// Verdict is the outcome of a validity check
type Verdict struct {
	Valid  bool   `json:"valid" yaml:"valid"`
	Reason string `json:"reason" yaml:"reason"`
}

// StationRange is the distance implied by a station's power under the path-loss model
type StationRange struct {
	StationID int      `json:"station_id" yaml:"station_id"`
	Power     float64  `json:"power" yaml:"power"`
	RangeKm   *float64 `json:"range_km,omitempty" yaml:"range_km,omitempty"` // Nil when the inversion overflows
	Anomalous bool     `json:"anomalous" yaml:"anomalous"`
}

// Signal represents a diagnostic signal with transparent data
type Signal struct {
	Type        SignalType             `json:"type" yaml:"type"`                     // Signal classification
	Severity    SignalSeverity         `json:"severity" yaml:"severity"`             // info, warning, critical
	Description string                 `json:"description" yaml:"description"`       // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"` // Inputs and formulas behind the signal
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalAnomalyRate       SignalType = "anomaly_rate"       // Share of stations flagged
	SignalDetectorAgreement SignalType = "detector_agreement" // How often detectors agreed
	SignalConvergence       SignalType = "convergence"        // Optimiser convergence
	SignalMethodSelection   SignalType = "method_selection"   // Which estimator won and by how much
	SignalRefinement        SignalType = "refinement"         // Outlier-driven refit
	SignalResidual          SignalType = "residual"           // Fit residual per station
	SignalGeometry          SignalType = "geometry"           // Station spread around the estimate
	SignalBounds            SignalType = "bounds"             // Estimate outside the configured area
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LLMSummary contains optional LLM-generated summary
// CRITICAL: This never affects the estimate and is clearly separated
type LLMSummary struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Provider  string   `json:"provider,omitempty" yaml:"provider,omitempty"`     // openai, ollama
	Model     string   `json:"model,omitempty" yaml:"model,omitempty"`           // Model name
	SummaryMD string   `json:"summary_md,omitempty" yaml:"summary_md,omitempty"` // Markdown summary
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`     // Any issues (e.g., provider unavailable)
}
