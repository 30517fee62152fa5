package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inference-sim/asampler/sampler"
)

// resolveAdaptConfig loads the adaptation parameters: defaults, then the
// YAML file at path if given, then --threshold (a percentage) when the user
// set it explicitly or no file was given. Flag defaults never overwrite file
// values.
func resolveAdaptConfig(cmd *cobra.Command, path string, thresholdPct float64) (sampler.AdaptConfig, error) {
	cfg := sampler.DefaultAdaptConfig()
	if path != "" {
		loaded, err := sampler.LoadAdaptConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if path == "" || cmd.Flags().Changed("threshold") {
		if !(thresholdPct > 0) {
			return cfg, fmt.Errorf("%w: --threshold must be a positive percentage, got %g", sampler.ErrInvalidConfig, thresholdPct)
		}
		cfg.Threshold = thresholdPct * 0.01
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
