package model

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput marks readings or parameters that are missing or malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientStations is returned when fewer than three usable stations remain
	ErrInsufficientStations = errors.New("insufficient stations")
)

// StationReading is a single power measurement taken at a fixed sensor station
type StationReading struct {
	StationID int      `json:"station_id" yaml:"station_id"`                     // Unique station identifier
	Name      string   `json:"station_name" yaml:"station_name"`                 // Human-readable station name
	X         float64  `json:"x" yaml:"x"`                                       // Planar east offset (km)
	Y         float64  `json:"y" yaml:"y"`                                       // Planar north offset (km)
	Lat       *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`               // Optional latitude (degrees)
	Lon       *float64 `json:"lon,omitempty" yaml:"lon,omitempty"`               // Optional longitude (degrees)
	Power     float64  `json:"power" yaml:"power"`                               // Measured signal strength (dBm)
	IsAnomaly *bool    `json:"is_anomaly,omitempty" yaml:"is_anomaly,omitempty"` // Simulation ground truth, never trusted
}

// HasGeo reports whether the reading carries a geographic position
func (r StationReading) HasGeo() bool {
	return r.Lat != nil && r.Lon != nil
}

// ValidateReadings rejects readings that cannot be used by the detector or the engine
func ValidateReadings(readings []StationReading) error {
	seen := make(map[int]int, len(readings))
	for i, r := range readings {
		if prev, ok := seen[r.StationID]; ok {
			return fmt.Errorf("%w: reading %d duplicates station_id %d of reading %d", ErrInvalidInput, i, r.StationID, prev)
		}
		seen[r.StationID] = i

		for field, v := range map[string]float64{"x": r.X, "y": r.Y, "power": r.Power} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: reading %d (station %d) has non-finite %s", ErrInvalidInput, i, r.StationID, field)
			}
		}

		if (r.Lat == nil) != (r.Lon == nil) {
			return fmt.Errorf("%w: reading %d (station %d) must set both lat and lon", ErrInvalidInput, i, r.StationID)
		}
	}
	return nil
}

// PathLossModel is the log-distance propagation model shared by the generator
// of the readings and the location engine
type PathLossModel struct {
	N  float64 `json:"n" yaml:"n" mapstructure:"n"`    // Path-loss exponent
	P0 float64 `json:"p0" yaml:"p0" mapstructure:"p0"` // Reference power at D0 (dBm)
	D0 float64 `json:"d0" yaml:"d0" mapstructure:"d0"` // Reference distance (km)
}

// DefaultPathLossModel returns free-space propagation with a 100 dBm reference at 1 km
func DefaultPathLossModel() PathLossModel {
	return PathLossModel{N: 2.0, P0: 100.0, D0: 1.0}
}

// Validate checks the model parameters
func (m PathLossModel) Validate() error {
	if !(m.N > 0) || math.IsInf(m.N, 0) {
		return fmt.Errorf("%w: path-loss exponent must be > 0, got %v", ErrInvalidInput, m.N)
	}
	if !(m.D0 > 0) || math.IsInf(m.D0, 0) {
		return fmt.Errorf("%w: reference distance must be > 0, got %v", ErrInvalidInput, m.D0)
	}
	if math.IsNaN(m.P0) || math.IsInf(m.P0, 0) {
		return fmt.Errorf("%w: reference power must be finite, got %v", ErrInvalidInput, m.P0)
	}
	return nil
}

// PredictPower returns the expected power at distance d (km).
// Distances below D0 are clamped to D0.
func (m PathLossModel) PredictPower(d float64) float64 {
	if d < m.D0 {
		d = m.D0
	}
	return m.P0 - 10*m.N*math.Log10(d/m.D0)
}

// DistanceForPower inverts the model: the distance (km) at which power p is expected
func (m PathLossModel) DistanceForPower(p float64) float64 {
	return m.D0 * math.Pow(10, (m.P0-p)/(10*m.N))
}
