package sampler

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/asampler/sampler/trace"
)

// maxDims bounds Ndim. Every leaf carries half statistics per adaptable
// dimension, so a state record grows linearly with it.
const maxDims = 4096

// validDims reports whether (ndim, nfixed) describes a usable domain.
func validDims(ndim, nfixed int) bool {
	return ndim >= 1 && ndim <= maxDims && nfixed >= 0 && nfixed <= ndim
}

// Estimate is an integral estimate with its uncertainties.
type Estimate struct {
	Value float64
	// Error is the statistical (one standard deviation) error of Value.
	Error float64
	// ErrorUncertainty is the statistical uncertainty of Error itself.
	ErrorUncertainty float64
	// Systematic is the shift between the pre- and post-adaptation
	// estimates; set by Reweighted only.
	Systematic float64
}

// pending remembers the last sampled point until its feedback arrives.
type pending struct {
	point  []float64
	weight float64
	leaf   *Cell
	lower  []bool
}

// Sampler draws points from the unit hypercube with an adaptively refined
// importance density and accumulates integrand feedback per leaf cell.
//
// Thread-safety: NOT thread-safe. Concurrent users each own a Sampler and
// pool their statistics through MergeFrom.
type Sampler struct {
	tree   *tree
	source RandomSource
	config AdaptConfig
	trace  *trace.AdaptationTrace
	last   *pending
}

// New creates a sampler over ndim dimensions whose leading nfixed dimensions
// are sampled uniformly and never adapted.
func New(ndim, nfixed int, source RandomSource, config AdaptConfig) (*Sampler, error) {
	if !validDims(ndim, nfixed) {
		return nil, fmt.Errorf("%w: Ndim=%d, Nfixed=%d", ErrInvalidDimensions, ndim, nfixed)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		tree:   newTree(ndim, nfixed),
		source: source,
		config: config,
	}, nil
}

// Ndim returns the total dimensionality.
func (s *Sampler) Ndim() int { return s.tree.ndim }

// Nfixed returns the number of leading dimensions excluded from adaptation.
func (s *Sampler) Nfixed() int { return s.tree.nfixed }

// Nsample returns the number of samples accumulated.
func (s *Sampler) Nsample() float64 { return s.tree.root.stats.N }

// Ncells returns the number of leaf cells.
func (s *Sampler) Ncells() int { return len(s.tree.leaves()) }

// Config returns the adaptation configuration.
func (s *Sampler) Config() AdaptConfig { return s.config }

// Root returns the root of the partition tree. The tree must not be modified.
func (s *Sampler) Root() *Cell { return s.tree.root }

// Leaves returns the leaf cells in depth-first order.
func (s *Sampler) Leaves() []*Cell { return s.tree.leaves() }

// Locate returns the leaf cell containing point.
func (s *Sampler) Locate(point []float64) *Cell { return s.tree.locate(point) }

// SetTrace attaches an adaptation trace; nil disables tracing.
func (s *Sampler) SetTrace(t *trace.AdaptationTrace) { s.trace = t }

// Sample draws the next point and its importance weight. The point belongs
// to the caller; Feedback must be called with the same coordinates.
func (s *Sampler) Sample() ([]float64, float64) {
	u := make([]float64, s.tree.ndim)
	s.source(u)
	return s.draw(u)
}

// SampleWithFixed is Sample with the leading Nfixed coordinates supplied by
// the caller instead of the random source. The source still fills the
// whole point, so the stream advances as in Sample.
func (s *Sampler) SampleWithFixed(fixed []float64) ([]float64, float64, error) {
	if len(fixed) != s.tree.nfixed {
		return nil, 0, fmt.Errorf("%w: got %d, want %d", ErrFixedCoordinates, len(fixed), s.tree.nfixed)
	}
	for d, v := range fixed {
		if !(v >= 0 && v < 1) {
			return nil, 0, fmt.Errorf("%w: x%d=%g", ErrFixedCoordinates, d, v)
		}
	}
	u := make([]float64, s.tree.ndim)
	s.source(u)
	copy(u, fixed)
	x, w := s.draw(u)
	return x, w, nil
}

// draw maps the uniforms u through the tree and makes the result the
// pending sample.
func (s *Sampler) draw(u []float64) ([]float64, float64) {
	lower := make([]bool, s.tree.nadapt())
	leaf, weight := s.tree.sample(u, lower)

	kept := make([]float64, len(u))
	copy(kept, u)
	s.last = &pending{point: kept, weight: weight, leaf: leaf, lower: lower}
	return u, weight
}

// Feedback records the integrand value observed at the last sampled point
// into its leaf cell and the cached sums above it. Each sample accepts one
// feedback; a mismatched point leaves the pending sample in place.
func (s *Sampler) Feedback(point []float64, value float64) error {
	p := s.last
	if p == nil {
		return ErrNoPendingSample
	}
	if !samePoint(point, p.point) {
		return fmt.Errorf("%w: got %v, last sampled %v", ErrFeedbackMismatch, point, p.point)
	}
	s.last = nil

	leaf := p.leaf
	for k, low := range p.lower {
		if low {
			leaf.halves[k].record(value, p.weight)
		}
	}
	for c := leaf; c != nil; c = c.parent {
		c.stats.record(value, p.weight)
	}
	return nil
}

func samePoint(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ResetStats zeroes every statistic without altering the tree. The current
// probabilities become the priors of the statistics gathered from here on.
func (s *Sampler) ResetStats() {
	s.tree.walk(func(c *Cell) {
		c.stats = Stats{}
		for k := range c.halves {
			c.halves[k] = Stats{}
		}
		c.prior = c.alpha
	})
	s.last = nil
	logrus.Debugf("sampler: statistics reset over %d leaves", s.Ncells())
}

// Result returns the importance-sampling estimate of the integral.
func (s *Sampler) Result() (Estimate, error) {
	tot := s.tree.root.stats
	if tot.N <= 0 {
		return Estimate{}, ErrResultUnknown
	}
	mean := tot.SumWF / tot.N
	variance := math.Max(0, tot.SumW2F2/tot.N-mean*mean)
	est := Estimate{Value: mean, Error: math.Sqrt(variance / tot.N)}
	if tot.N > 1 {
		est.ErrorUncertainty = est.Error / math.Sqrt(2*(tot.N-1))
	}
	return est, nil
}

// reweighted computes the stratified estimate over the current leaves and
// the second moment Σ V²·mean(f²)/alpha of the importance weight times f
// under the current probabilities.
func (s *Sampler) reweighted() (value, second float64) {
	for _, l := range s.tree.leaves() {
		if l.stats.N <= 0 {
			continue
		}
		value += l.volume * l.stats.Mean()
		second += l.volume * l.volume * (l.stats.SumF2 / l.stats.N) / l.alpha
	}
	return value, second
}

// Reweighted returns the estimate recomputed with the probabilities installed
// by the most recent Adapt, the statistical error projected for the same
// number of samples drawn from them, and the discrepancy with Result as a
// systematic error.
func (s *Sampler) Reweighted() (Estimate, error) {
	raw, err := s.Result()
	if err != nil {
		return Estimate{}, err
	}
	value, second := s.reweighted()
	n := s.tree.root.stats.N
	variance := math.Max(0, second-value*value)
	est := Estimate{
		Value:      value,
		Error:      math.Sqrt(variance / n),
		Systematic: math.Abs(value - raw.Value),
	}
	if n > 1 {
		est.ErrorUncertainty = est.Error / math.Sqrt(2*(n-1))
	}
	return est, nil
}

// Efficiency returns the effective sample size divided by the raw count,
// (Σwf)²/(N·Σ(wf)²), in (0,1]. With reweighted set it is the efficiency
// projected for sampling from the current (post-adaptation) probabilities.
func (s *Sampler) Efficiency(reweighted bool) (float64, error) {
	tot := s.tree.root.stats
	if tot.N <= 0 {
		return 0, ErrResultUnknown
	}
	var num, den float64
	if reweighted {
		value, second := s.reweighted()
		num, den = value*value, second
	} else {
		num, den = tot.SumWF*tot.SumWF, tot.N*tot.SumW2F2
	}
	if den <= 0 || num <= 0 {
		return 0, ErrResultUnknown
	}
	return math.Min(1, num/den), nil
}
