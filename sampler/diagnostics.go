package sampler

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// cacheTolerance is the relative tolerance on cached sums of internal nodes.
	cacheTolerance = 1e-9

	// minExpectedCount is the smallest expected leaf count the count check tests.
	minExpectedCount = 5
)

// CheckSubsets walks the tree and returns the number of anomalies found:
// internal nodes whose children do not tile them, cached probabilities or
// statistics that disagree with the sum over the children, and leaves whose
// sample count is statistically inconsistent with N·prior. Each anomaly is
// logged at warn level; 0 means the tree is structurally sound.
func (s *Sampler) CheckSubsets() int {
	leaves := s.tree.leaves()
	total := s.tree.root.stats.N
	cut := distuv.ChiSquared{K: 1}.Quantile(1 - s.config.CheckSignificance/float64(len(leaves)))

	warnings := 0
	warn := func(format string, args ...interface{}) {
		warnings++
		logrus.Warnf("check_subsets: "+format, args...)
	}

	s.tree.walk(func(c *Cell) {
		path := c.PathString()
		if c.IsLeaf() {
			if !(c.alpha > 0) || !(c.prior > 0) {
				warn("leaf %s has non-positive probability alpha=%g prior=%g", path, c.alpha, c.prior)
				return
			}
			expected := total * c.prior
			if expected < minExpectedCount || c.prior >= 1 {
				return
			}
			dev := c.stats.N - expected
			if chi2 := dev * dev / (expected * (1 - c.prior)); chi2 > cut {
				warn("leaf %s holds %g samples, expected %.1f (chi2=%.1f > %.1f)", path, c.stats.N, expected, chi2, cut)
			}
			return
		}

		c0, c1 := c.children[0], c.children[1]
		if c0.volume+c1.volume != c.volume || c0.volume != c1.volume {
			warn("cell %s volume %g not tiled by children %g + %g", path, c.volume, c0.volume, c1.volume)
		}
		if c0.parent != c || c1.parent != c || c0.depth != c.depth+1 || c1.depth != c.depth+1 {
			warn("cell %s has inconsistent child links", path)
		}
		// Signed sums may cancel; sqrt(n·Σx²) bounds Σ|x| and sets their scale.
		st := c.stats
		checks := []struct {
			name        string
			got, c0, c1 float64
			scale       float64
		}{
			{"alpha", c.alpha, c0.alpha, c1.alpha, 0},
			{"prior", c.prior, c0.prior, c1.prior, 0},
			{"n", st.N, c0.stats.N, c1.stats.N, 0},
			{"sum f", st.SumF, c0.stats.SumF, c1.stats.SumF, math.Sqrt(st.N * st.SumF2)},
			{"sum f^2", st.SumF2, c0.stats.SumF2, c1.stats.SumF2, 0},
			{"sum wf", st.SumWF, c0.stats.SumWF, c1.stats.SumWF, math.Sqrt(st.N * st.SumW2F2)},
			{"sum (wf)^2", st.SumW2F2, c0.stats.SumW2F2, c1.stats.SumW2F2, 0},
		}
		for _, chk := range checks {
			if !closeTo(chk.got, chk.c0+chk.c1, chk.scale) {
				warn("cell %s caches %s=%g, children sum to %g", path, chk.name, chk.got, chk.c0+chk.c1)
			}
		}
	})
	return warnings
}

// closeTo compares a and b relative to the larger of their magnitudes and scale.
func closeTo(a, b, scale float64) bool {
	return math.Abs(a-b) <= cacheTolerance*math.Max(scale, math.Max(math.Abs(a), math.Abs(b)))
}

// DisplayTree writes one line per cell, indented by depth: its path, the
// extent of every adaptable dimension, the sample count, the selection
// probability (alpha when adapted is set, otherwise the prior the
// statistics were drawn under), the sampling density probability/volume and
// the mean integrand value.
func (s *Sampler) DisplayTree(w io.Writer, adapted bool) error {
	var err error
	s.tree.walk(func(c *Cell) {
		if err != nil {
			return
		}
		p := c.prior
		if adapted {
			p = c.alpha
		}
		lo, hi := c.bounds(s.tree.ndim)
		var extent strings.Builder
		for d := s.tree.nfixed; d < s.tree.ndim; d++ {
			fmt.Fprintf(&extent, " x%d=[%g,%g)", d, lo[d], hi[d])
		}
		_, err = fmt.Fprintf(w, "%s%s%s n=%g p=%.6g density=%.6g mean=%.6g\n",
			strings.Repeat("  ", c.depth), c.PathString(), extent.String(),
			c.stats.N, p, p/c.volume, c.stats.Mean())
	})
	return err
}
