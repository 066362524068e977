package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/rflocate/internal/model"
)

// Input is one locate job as read from disk
type Input struct {
	Name     string                 `json:"name,omitempty" yaml:"name,omitempty"`   // Label carried into the report
	Model    *model.PathLossModel   `json:"model,omitempty" yaml:"model,omitempty"` // Overrides the configured model
	Mode     string                 `json:"mode,omitempty" yaml:"mode,omitempty"`   // local or geographic
	Readings []model.StationReading `json:"readings" yaml:"readings"`
}

// LoadInput reads an input file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var in Input
	if isJSON(path) {
		err = json.Unmarshal(data, &in)
	} else {
		err = yaml.Unmarshal(data, &in)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", model.ErrInvalidInput, path, err)
	}

	if len(in.Readings) == 0 {
		return nil, fmt.Errorf("%w: %s has no readings", model.ErrInvalidInput, path)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &in, nil
}

// WriteInput writes an input file in the format implied by its extension
func WriteInput(path string, in *Input) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(in, "", "  ")
	} else {
		data, err = yaml.Marshal(in)
	}
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
