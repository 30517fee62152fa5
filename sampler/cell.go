package sampler

import (
	"math"
	"strconv"
	"strings"
)

// Stats accumulates the running sums of integrand values observed in a cell.
// N is a float because apportioning a cell's statistics between its children
// can leave fractional counts.
type Stats struct {
	N       float64 // sample count
	SumF    float64 // Σ f
	SumF2   float64 // Σ f²
	SumWF   float64 // Σ w·f
	SumW2F2 float64 // Σ (w·f)²
}

func (s *Stats) record(f, w float64) {
	wf := w * f
	s.N++
	s.SumF += f
	s.SumF2 += f * f
	s.SumWF += wf
	s.SumW2F2 += wf * wf
}

func (s *Stats) add(o Stats) {
	s.N += o.N
	s.SumF += o.SumF
	s.SumF2 += o.SumF2
	s.SumWF += o.SumWF
	s.SumW2F2 += o.SumW2F2
}

func (s Stats) minus(o Stats) Stats {
	return Stats{
		N:       s.N - o.N,
		SumF:    s.SumF - o.SumF,
		SumF2:   s.SumF2 - o.SumF2,
		SumWF:   s.SumWF - o.SumWF,
		SumW2F2: s.SumW2F2 - o.SumW2F2,
	}
}

// scaled multiplies every sum by k. With k = 0.5 the result is exact.
func (s Stats) scaled(k float64) Stats {
	return Stats{
		N:       s.N * k,
		SumF:    s.SumF * k,
		SumF2:   s.SumF2 * k,
		SumWF:   s.SumWF * k,
		SumW2F2: s.SumW2F2 * k,
	}
}

// Mean returns Σf/n, or 0 for an empty cell.
func (s Stats) Mean() float64 {
	if s.N <= 0 {
		return 0
	}
	return s.SumF / s.N
}

// RMS returns sqrt(Σf²/n), or 0 for an empty cell.
func (s Stats) RMS() float64 {
	if s.N <= 0 {
		return 0
	}
	return math.Sqrt(s.SumF2 / s.N)
}

// Variance returns the per-sample variance Σf²/n − (Σf/n)², clamped at 0.
func (s Stats) Variance() float64 {
	if s.N <= 0 {
		return 0
	}
	mean := s.SumF / s.N
	return math.Max(0, s.SumF2/s.N-mean*mean)
}

// Step is one midpoint split on the path from the root to a cell.
type Step struct {
	Dim   int
	Upper bool
}

func (s Step) String() string {
	if s.Upper {
		return strconv.Itoa(s.Dim) + "+"
	}
	return strconv.Itoa(s.Dim) + "-"
}

// Cell is one node of the partition tree: a hyper-rectangular sub-region of
// the adaptable dimensions. Leaves hold the accumulated statistics; internal
// nodes cache the sums over the leaves below them.
type Cell struct {
	parent   *Cell
	children [2]*Cell
	axis     int // split dimension, internal nodes only
	upper    bool
	depth    int
	volume   float64

	alpha float64 // current selection probability
	prior float64 // selection probability the current statistics were drawn under
	stats Stats

	// halves[k] holds the statistics of samples in the lower half of the cell
	// along adaptable dimension nfixed+k. Leaves only.
	halves []Stats
}

func newRoot(nadapt int) *Cell {
	return &Cell{
		volume: 1,
		alpha:  1,
		prior:  1,
		halves: make([]Stats, nadapt),
	}
}

// IsLeaf reports whether the cell is undivided.
func (c *Cell) IsLeaf() bool { return c.children[0] == nil }

// Children returns the lower and upper child; both nil for a leaf.
func (c *Cell) Children() (*Cell, *Cell) { return c.children[0], c.children[1] }

// Axis returns the split dimension of an internal cell, -1 for a leaf.
func (c *Cell) Axis() int {
	if c.IsLeaf() {
		return -1
	}
	return c.axis
}

// Depth returns the number of splits between the root and the cell.
func (c *Cell) Depth() int { return c.depth }

// Volume returns the cell's share of the unit hypercube.
func (c *Cell) Volume() float64 { return c.volume }

// Alpha returns the current selection probability of the cell.
func (c *Cell) Alpha() float64 { return c.alpha }

// Prior returns the selection probability under which Stats were accumulated.
func (c *Cell) Prior() float64 { return c.prior }

// Stats returns the cell's accumulated statistics.
func (c *Cell) Stats() Stats { return c.stats }

// Path returns the splits leading from the root to the cell.
func (c *Cell) Path() []Step {
	path := make([]Step, c.depth)
	for n := c; n.parent != nil; n = n.parent {
		path[n.depth-1] = Step{Dim: n.parent.axis, Upper: n.upper}
	}
	return path
}

// PathString encodes Path as "/" for the root or dot-separated steps such as "0-.1+".
func (c *Cell) PathString() string {
	if c.depth == 0 {
		return "/"
	}
	steps := c.Path()
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// splitsAlong counts the splits on dim between the root and the cell.
func (c *Cell) splitsAlong(dim int) int {
	count := 0
	for n := c; n.parent != nil; n = n.parent {
		if n.parent.axis == dim {
			count++
		}
	}
	return count
}

// bounds returns the lower and upper edge of the cell along every dimension;
// dimensions never split span [0,1).
func (c *Cell) bounds(ndim int) (lo, hi []float64) {
	lo = make([]float64, ndim)
	hi = make([]float64, ndim)
	for d := range hi {
		hi[d] = 1
	}
	for _, s := range c.Path() {
		mid := 0.5 * (lo[s.Dim] + hi[s.Dim])
		if s.Upper {
			lo[s.Dim] = mid
		} else {
			hi[s.Dim] = mid
		}
	}
	return lo, hi
}

// block is a detached bundle of statistics with their half statistics, the
// unit moved around when a tree is refined or merged.
type block struct {
	stats  Stats
	halves []Stats
}

func (c *Cell) block() block {
	halves := make([]Stats, len(c.halves))
	copy(halves, c.halves)
	return block{stats: c.stats, halves: halves}
}

func (b *block) add(o block) {
	b.stats.add(o.stats)
	for k := range b.halves {
		b.halves[k].add(o.halves[k])
	}
}

// split apportions the block between the lower and upper half along adaptable
// index k. The children start with no information about their own halves, so
// each half statistic is set to half of the child's total.
func (b block) split(k int) (block, block) {
	lo := b.halves[k]
	hi := b.stats.minus(lo)
	return evenBlock(lo, len(b.halves)), evenBlock(hi, len(b.halves))
}

func evenBlock(s Stats, nadapt int) block {
	halves := make([]Stats, nadapt)
	half := s.scaled(0.5)
	for k := range halves {
		halves[k] = half
	}
	return block{stats: s, halves: halves}
}
