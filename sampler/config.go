package sampler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// AdaptConfig holds the parameters of the adaptation engine and the
// structural checker. Loaded from YAML via LoadAdaptConfig(path).
type AdaptConfig struct {
	// Threshold is the largest fraction of the total sampling probability a
	// single leaf may carry before it is subdivided.
	Threshold float64 `yaml:"threshold"`

	// MinSamples is the sample-count floor below which a leaf is left unchanged.
	MinSamples float64 `yaml:"min_samples"`

	// Exploration is the weight of the uniform component mixed into the
	// adapted density, keeping every leaf reachable.
	Exploration float64 `yaml:"exploration"`

	// MaxDepth bounds the number of splits between the root and any leaf.
	MaxDepth int `yaml:"max_depth"`

	// CheckSignificance is the family-wise false-alarm rate of the count
	// consistency check in CheckSubsets.
	CheckSignificance float64 `yaml:"check_significance"`
}

// DefaultAdaptConfig returns the configuration used when none is supplied.
func DefaultAdaptConfig() AdaptConfig {
	return AdaptConfig{
		Threshold:         0.01,
		MinSamples:        10,
		Exploration:       0.05,
		MaxDepth:          24,
		CheckSignificance: 1e-3,
	}
}

// Validate checks that every parameter is in range.
func (c AdaptConfig) Validate() error {
	if err := validateFraction("threshold", c.Threshold, true); err != nil {
		return err
	}
	if math.IsNaN(c.MinSamples) || math.IsInf(c.MinSamples, 0) || c.MinSamples < 1 {
		return fmt.Errorf("%w: min_samples must be a finite number >= 1, got %g", ErrInvalidConfig, c.MinSamples)
	}
	if err := validateFraction("exploration", c.Exploration, false); err != nil {
		return err
	}
	if c.MaxDepth < 1 || c.MaxDepth > 1000 {
		return fmt.Errorf("%w: max_depth must be in [1, 1000], got %d", ErrInvalidConfig, c.MaxDepth)
	}
	if err := validateFraction("check_significance", c.CheckSignificance, false); err != nil {
		return err
	}
	return nil
}

// validateFraction requires val in (0,1), or (0,1] when closed is set.
func validateFraction(name string, val float64, closed bool) error {
	if math.IsNaN(val) || val <= 0 || val > 1 || (!closed && val == 1) {
		return fmt.Errorf("%w: %s must be a fraction in (0,1), got %g", ErrInvalidConfig, name, val)
	}
	return nil
}

// LoadAdaptConfig reads an AdaptConfig from a YAML file. Keys absent from the
// file keep their DefaultAdaptConfig values; unrecognized keys are rejected.
func LoadAdaptConfig(path string) (AdaptConfig, error) {
	cfg := DefaultAdaptConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading adapt config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing adapt config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("adapt config %s: %w", path, err)
	}
	return cfg, nil
}
