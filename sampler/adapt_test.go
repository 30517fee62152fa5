package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/asampler/sampler/integrand"
	"github.com/inference-sim/asampler/sampler/trace"
)

func TestAdapt_ConstantIntegrand_NoChange(t *testing.T) {
	// GIVEN a flat integrand
	s := newTestSampler(t, 2, 0, 1)
	fill(t, s, &integrand.Constant{Value: 1}, 5000)

	// WHEN adapted
	n, err := s.Adapt(0)

	// THEN nothing varies, so nothing is split
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, s.Ncells())
}

func TestAdapt_BelowSampleFloor_NoChange(t *testing.T) {
	s := newTestSampler(t, 2, 0, 1)
	fill(t, s, peak, 5)

	n, err := s.Adapt(0)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1.0, s.Root().Alpha())
}

func TestAdapt_NoSamples_NoChange(t *testing.T) {
	s := newTestSampler(t, 3, 1, 1)

	n, err := s.Adapt(0)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAdapt_InvalidThreshold(t *testing.T) {
	s := newTestSampler(t, 2, 0, 1)
	for _, th := range []float64{1.5, math.NaN()} {
		_, err := s.Adapt(th)
		assert.ErrorIs(t, err, ErrInvalidConfig, "threshold %v", th)
	}
}

func TestAdapt_Idempotent(t *testing.T) {
	// GIVEN a tree adapted to the peak
	s := newTestSampler(t, 2, 0, 2)
	fill(t, s, peak, 20000)
	first, err := s.Adapt(0)
	require.NoError(t, err)
	require.Greater(t, first, 0)
	before := s.Leaves()
	alphas := make([]float64, len(before))
	for i, l := range before {
		alphas[i] = l.Alpha()
	}

	// WHEN adapted again without new samples
	second, err := s.Adapt(0)

	// THEN nothing changes
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	after := s.Leaves()
	require.Len(t, after, len(before))
	for i, l := range after {
		assert.Same(t, before[i], l)
		assert.InDelta(t, alphas[i], l.Alpha(), 1e-12)
	}
}

func TestAdapt_Deterministic(t *testing.T) {
	// GIVEN two samplers fed identical streams
	a := newTestSampler(t, 3, 1, 99)
	b := newTestSampler(t, 3, 1, 99)
	fill(t, a, peak, 10000)
	fill(t, b, peak, 10000)

	// WHEN both adapt
	na, err := a.Adapt(0)
	require.NoError(t, err)
	nb, err := b.Adapt(0)
	require.NoError(t, err)

	// THEN the trees are bit-identical
	assert.Equal(t, na, nb)
	assert.Equal(t, encode(t, a), encode(t, b))
}

func TestAdapt_SplitsPeakCells(t *testing.T) {
	s := newTestSampler(t, 2, 0, 4)
	fill(t, s, peak, 20000)

	n, err := s.Adapt(0)
	require.NoError(t, err)

	// every split adds one leaf
	assert.Equal(t, n+1, s.Ncells())
	// the cell holding the peak is finer than the one holding the corner
	center := s.Locate([]float64{0.5, 0.5})
	corner := s.Locate([]float64{0.01, 0.01})
	assert.Greater(t, center.Depth(), corner.Depth())
	assert.Greater(t, center.Alpha()/center.Volume(), corner.Alpha()/corner.Volume())
}

func TestAdapt_ThresholdBoundsLeafProbability(t *testing.T) {
	// GIVEN a generous threshold
	s := newTestSampler(t, 2, 0, 6)
	fill(t, s, peak, 20000)

	// WHEN adapted
	_, err := s.Adapt(0.1)
	require.NoError(t, err)

	// THEN no splittable leaf carries more than the threshold
	for _, l := range s.Leaves() {
		if s.splittable(l, 0.1) {
			t.Errorf("leaf %s still splittable with alpha=%g", l.PathString(), l.Alpha())
		}
	}
}

func TestAdapt_FixedDimensionsNeverSplit(t *testing.T) {
	// GIVEN an integrand that varies most along the fixed dimension
	s := newTestSampler(t, 3, 1, 8)
	f := &integrand.Gaussian{Center: 0.5, Width: 0.1}
	fill(t, s, f, 20000)

	// WHEN adapted
	n, err := s.Adapt(0)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	// THEN every split is along an adaptable dimension
	var visit func(c *Cell)
	visit = func(c *Cell) {
		if c.IsLeaf() {
			return
		}
		assert.GreaterOrEqual(t, c.Axis(), 1, "cell %s split along fixed dimension", c.PathString())
		c0, c1 := c.Children()
		visit(c0)
		visit(c1)
	}
	visit(s.Root())
}

func TestAdapt_MaxDepthBound(t *testing.T) {
	cfg := DefaultAdaptConfig()
	cfg.MaxDepth = 2
	rngs := NewPartitionedRNG(NewSimulationKey(10))
	s, err := New(2, 0, rngs.Source(SubsystemSampler), cfg)
	require.NoError(t, err)
	fill(t, s, peak, 20000)

	_, err = s.Adapt(0)
	require.NoError(t, err)

	for _, l := range s.Leaves() {
		assert.LessOrEqual(t, l.Depth(), 2)
	}
}

func TestAdapt_Trace(t *testing.T) {
	s := newTestSampler(t, 2, 0, 12)
	at := trace.NewAdaptationTrace(trace.TraceLevelSplits)
	s.SetTrace(at)
	fill(t, s, peak, 20000)

	n, err := s.Adapt(0)
	require.NoError(t, err)

	assert.Len(t, at.Splits, n)
	assert.Greater(t, at.Passes, 1)
	for _, r := range at.Splits {
		assert.GreaterOrEqual(t, r.Axis, 0)
		assert.Less(t, r.Axis, 2)
	}
}

func TestChooseAxis_LargestGainWins(t *testing.T) {
	// GIVEN a leaf whose integrand varies only along x1
	s, err := New(2, 0, UniformSource(nil), DefaultAdaptConfig())
	require.NoError(t, err)
	l := s.tree.root
	l.stats = Stats{N: 4, SumF: 2, SumF2: 2}
	l.halves[0] = Stats{N: 2, SumF: 1, SumF2: 1}
	l.halves[1] = Stats{N: 2, SumF: 2, SumF2: 2}

	// WHEN the split axis is chosen
	axis, gain := s.chooseAxis(l)

	// THEN it is x1 with gain rms − (1 + 0)/2
	assert.Equal(t, 1, axis)
	assert.InDelta(t, math.Sqrt(0.5)-0.5, gain, 1e-12)
}

func TestChooseAxis_TieGoesToLowestIndex(t *testing.T) {
	s, err := New(2, 0, UniformSource(nil), DefaultAdaptConfig())
	require.NoError(t, err)
	l := s.tree.root
	l.stats = Stats{N: 4, SumF: 2, SumF2: 2}
	l.halves[0] = Stats{N: 2, SumF: 2, SumF2: 2}
	l.halves[1] = Stats{N: 2, SumF: 2, SumF2: 2}

	axis, _ := s.chooseAxis(l)

	assert.Equal(t, 0, axis)
}

func TestChooseAxis_TieGoesToWidestDimension(t *testing.T) {
	// GIVEN a leaf already halved along x0
	s, err := New(2, 0, UniformSource(nil), DefaultAdaptConfig())
	require.NoError(t, err)
	s.tree.divide(s.tree.root, 0, 0.5)
	l := s.tree.root.children[0]
	l.stats = Stats{N: 4, SumF: 2, SumF2: 2}
	l.halves[0] = Stats{N: 2, SumF: 2, SumF2: 2}
	l.halves[1] = Stats{N: 2, SumF: 2, SumF2: 2}

	// WHEN both dimensions promise the same gain
	axis, _ := s.chooseAxis(l)

	// THEN the dimension along which the leaf is widest wins
	assert.Equal(t, 1, axis)
}
