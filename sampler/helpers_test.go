package sampler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/asampler/sampler/integrand"
)

// newTestSampler returns a sampler with the default config on the seed's
// sampler stream.
func newTestSampler(t *testing.T, ndim, nfixed int, seed int64) *Sampler {
	t.Helper()
	rngs := NewPartitionedRNG(NewSimulationKey(seed))
	s, err := New(ndim, nfixed, rngs.Source(SubsystemSampler), DefaultAdaptConfig())
	require.NoError(t, err)
	return s
}

// fill draws n samples and feeds back f at each point.
func fill(t *testing.T, s *Sampler, f integrand.Integrand, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		x, _ := s.Sample()
		require.NoError(t, s.Feedback(x, f.Eval(x)))
	}
}

// encode returns the state of s with adapted weights.
func encode(t *testing.T, s *Sampler) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.WriteState(&buf, true))
	return buf.String()
}

// peak is a narrow Gaussian the adaptation should concentrate on.
var peak = &integrand.Gaussian{Center: 0.5, Width: 0.1}
