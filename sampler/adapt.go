package sampler

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/asampler/sampler/trace"
)

const (
	// varianceTolerance is the relative per-sample variance below which a
	// leaf is treated as flat: splitting it cannot reduce the variance.
	varianceTolerance = 1e-12

	// gainTieTolerance is the relative difference under which two split
	// dimensions tie on estimated gain.
	gainTieTolerance = 1e-9
)

// Adapt refines the sampling density from the accumulated statistics and
// returns the number of cells split. A threshold <= 0 selects the configured
// one. Zero changes means the tree is at a fixed point for these statistics;
// calling Adapt again without new samples returns 0.
//
// Each pass reallocates the probabilities of the leaves holding at least
// MinSamples samples, then splits those that carry more than threshold of
// the total probability and whose integrand varies. Passes repeat until none
// splits anything, visiting leaves depth-first so equal inputs produce equal
// trees.
func (s *Sampler) Adapt(threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = s.config.Threshold
	}
	if math.IsNaN(threshold) || threshold > 1 {
		return 0, fmt.Errorf("%w: threshold must be a fraction in (0,1], got %g", ErrInvalidConfig, threshold)
	}
	s.last = nil

	changes := 0
	for pass := 1; ; pass++ {
		leaves := s.tree.leaves()
		lambda := s.exploration(leaves)
		s.allocate(leaves, lambda)

		var splits []*Cell
		for _, l := range leaves {
			if s.splittable(l, threshold) {
				splits = append(splits, l)
			}
		}
		if s.trace != nil {
			s.trace.RecordPass()
		}
		if len(splits) == 0 {
			break
		}
		for _, l := range splits {
			axis, gain := s.chooseAxis(l)
			if s.trace != nil {
				s.trace.RecordSplit(trace.SplitRecord{
					Pass:     pass,
					Path:     l.PathString(),
					Axis:     axis,
					Depth:    l.depth,
					Alpha:    l.alpha,
					Samples:  l.stats.N,
					Variance: l.stats.Variance(),
					Gain:     gain,
				})
			}
			logrus.Debugf("adapt: pass %d split %s along x%d (alpha=%.4g, n=%g, gain=%.4g)",
				pass, l.PathString(), axis, l.alpha, l.stats.N, gain)
			s.split(l, axis, lambda)
		}
		changes += len(splits)
	}
	s.tree.rollup()

	logrus.Infof("adapt: %d cells split, %d leaves, threshold=%g", changes, s.Ncells(), threshold)
	return changes, nil
}

// eligible reports whether a leaf has enough samples to be adapted.
func (s *Sampler) eligible(l *Cell) bool {
	return l.stats.N >= s.config.MinSamples
}

// exploration returns λ = Exploration·Σ V·rms over all leaves, the uniform
// component added to every leaf's rms. Splitting preserves Σ V·rms when
// statistics are apportioned evenly, so λ is stable across passes.
func (s *Sampler) exploration(leaves []*Cell) float64 {
	sum := 0.0
	for _, l := range leaves {
		sum += l.volume * l.stats.RMS()
	}
	return s.config.Exploration * sum
}

// allocation is the unnormalized share g = V·(rms + λ) of a leaf.
func allocation(volume, rms, lambda float64) float64 {
	return volume * (rms + lambda)
}

// allocate redistributes the probability held by eligible leaves in
// proportion to their allocation. Leaves below the sample floor keep their
// probability. When no eligible leaf has a positive allocation the mass is
// shared by volume.
func (s *Sampler) allocate(leaves []*Cell, lambda float64) {
	var mass, gsum, vsum float64
	for _, l := range leaves {
		if s.eligible(l) {
			mass += l.alpha
			gsum += allocation(l.volume, l.stats.RMS(), lambda)
			vsum += l.volume
		}
	}
	if vsum == 0 {
		return
	}
	for _, l := range leaves {
		if !s.eligible(l) {
			continue
		}
		if gsum > 0 {
			l.alpha = mass * allocation(l.volume, l.stats.RMS(), lambda) / gsum
		} else {
			l.alpha = mass * l.volume / vsum
		}
	}
}

func (s *Sampler) splittable(l *Cell, threshold float64) bool {
	if s.tree.nadapt() == 0 || l.depth >= s.config.MaxDepth {
		return false
	}
	if !s.eligible(l) || l.alpha <= threshold {
		return false
	}
	return l.stats.Variance() > varianceTolerance*(l.stats.SumF2/l.stats.N)
}

// chooseAxis picks the adaptable dimension whose split is estimated to most
// reduce the rms cost V·rms of the leaf, using its half statistics. Ties go
// to the dimension along which the leaf is widest, then to the lowest index.
func (s *Sampler) chooseAxis(l *Cell) (int, float64) {
	rms := l.stats.RMS()
	best, bestGain := -1, 0.0
	for d := s.tree.nfixed; d < s.tree.ndim; d++ {
		gain := splitGain(l.stats, l.halves[d-s.tree.nfixed])
		if best < 0 {
			best, bestGain = d, gain
			continue
		}
		tol := gainTieTolerance * rms
		switch {
		case gain > bestGain+tol:
			best, bestGain = d, gain
		case gain >= bestGain-tol && l.splitsAlong(d) < l.splitsAlong(best):
			best, bestGain = d, gain
		}
	}
	return best, bestGain
}

// splitGain estimates rms − (rms_lo + rms_hi)/2 for a split into halves.
func splitGain(total, lower Stats) float64 {
	upper := total.minus(lower)
	if lower.N <= 0 || upper.N <= 0 {
		return 0
	}
	return total.RMS() - 0.5*(lower.RMS()+upper.RMS())
}

// split divides leaf l along axis, sharing its probability between the
// children in proportion to their allocations.
func (s *Sampler) split(l *Cell, axis int, lambda float64) {
	lo, hi := l.block().split(axis - s.tree.nfixed)
	g0 := allocation(0.5*l.volume, lo.stats.RMS(), lambda)
	g1 := allocation(0.5*l.volume, hi.stats.RMS(), lambda)
	share0 := 0.5
	if g0+g1 > 0 {
		share0 = g0 / (g0 + g1)
	}
	s.tree.divide(l, axis, share0)
}
