package sampler

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adapt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultAdaptConfig_Valid(t *testing.T) {
	cfg := DefaultAdaptConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.01, cfg.Threshold)
	assert.Equal(t, 10.0, cfg.MinSamples)
}

func TestAdaptConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AdaptConfig)
	}{
		{"zero threshold", func(c *AdaptConfig) { c.Threshold = 0 }},
		{"threshold above one", func(c *AdaptConfig) { c.Threshold = 1.5 }},
		{"nan threshold", func(c *AdaptConfig) { c.Threshold = math.NaN() }},
		{"min samples below one", func(c *AdaptConfig) { c.MinSamples = 0.5 }},
		{"infinite min samples", func(c *AdaptConfig) { c.MinSamples = math.Inf(1) }},
		{"exploration one", func(c *AdaptConfig) { c.Exploration = 1 }},
		{"zero exploration", func(c *AdaptConfig) { c.Exploration = 0 }},
		{"zero max depth", func(c *AdaptConfig) { c.MaxDepth = 0 }},
		{"huge max depth", func(c *AdaptConfig) { c.MaxDepth = 5000 }},
		{"zero significance", func(c *AdaptConfig) { c.CheckSignificance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAdaptConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadAdaptConfig_PartialFileKeepsDefaults(t *testing.T) {
	// GIVEN a file that sets only the threshold
	path := writeConfig(t, "threshold: 0.05\n")

	// WHEN loaded
	cfg, err := LoadAdaptConfig(path)

	// THEN the threshold is overridden and the rest are defaults
	require.NoError(t, err)
	want := DefaultAdaptConfig()
	want.Threshold = 0.05
	assert.Equal(t, want, cfg)
}

func TestLoadAdaptConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadAdaptConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultAdaptConfig(), cfg)
}

func TestLoadAdaptConfig_UnknownKeyRejected(t *testing.T) {
	_, err := LoadAdaptConfig(writeConfig(t, "treshold: 0.05\n"))
	assert.Error(t, err, "typo must be rejected by strict parsing")
}

func TestLoadAdaptConfig_InvalidValueRejected(t *testing.T) {
	_, err := LoadAdaptConfig(writeConfig(t, "exploration: 2\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadAdaptConfig_MissingFile(t *testing.T) {
	_, err := LoadAdaptConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
