package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/rflocate/internal/model"
)

const keyPrefix = "rflocate:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyInput is the canonical form hashed into a cache key. Field order is fixed
// by the struct so equal inputs always produce the same bytes.
type keyInput struct {
	Model    model.PathLossModel    `json:"model"`
	Origin   model.OriginConfig     `json:"origin"`
	Mode     string                 `json:"mode"`
	Readings []model.StationReading `json:"readings"`
}

// Key derives a cache key from everything that determines a report's numbers
func Key(m model.PathLossModel, origin model.OriginConfig, mode string, readings []model.StationReading) (string, error) {
	data, err := json.Marshal(keyInput{Model: m, Origin: origin, Mode: mode, Readings: readings})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	hash := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(hash[:]), nil
}

// GetReport decodes a cached report. Undecodable entries are dropped and
// reported as a miss.
func GetReport(c Cache, key string) (*model.Report, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		_ = c.Delete(key)
		return nil, false
	}
	return &report, true
}

// SetReport encodes and stores a report
func SetReport(c Cache, key string, report *model.Report, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return c.Set(key, data, ttl)
}
