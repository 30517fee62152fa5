package sampler

import "math"

// oneBelow is the largest float64 below 1; remapped draws are clamped to it.
var oneBelow = math.Nextafter(1, 0)

// tree is the recursive midpoint subdivision of the adaptable dimensions
// [nfixed, ndim) of the unit hypercube. Fixed dimensions are never split.
type tree struct {
	ndim   int
	nfixed int
	root   *Cell
}

func newTree(ndim, nfixed int) *tree {
	return &tree{ndim: ndim, nfixed: nfixed, root: newRoot(ndim - nfixed)}
}

func (t *tree) nadapt() int { return t.ndim - t.nfixed }

// walk visits every cell depth-first, lower child first.
func (t *tree) walk(fn func(c *Cell)) {
	var visit func(c *Cell)
	visit = func(c *Cell) {
		fn(c)
		if !c.IsLeaf() {
			visit(c.children[0])
			visit(c.children[1])
		}
	}
	visit(t.root)
}

// leaves returns the leaf cells in depth-first order, lower child first.
func (t *tree) leaves() []*Cell {
	var out []*Cell
	t.walk(func(c *Cell) {
		if c.IsLeaf() {
			out = append(out, c)
		}
	})
	return out
}

// sample maps the uniform draws in u through the tree, in place. At each
// internal node the draw of the split dimension selects a child in
// proportion to the children's probability masses and is rescaled into that
// child; at the leaf every adaptable draw is mapped into the leaf's extent.
// lower[k] reports whether the point fell in the lower half of the leaf along
// adaptable index k. The returned weight is volume/alpha of the leaf.
func (t *tree) sample(u []float64, lower []bool) (*Cell, float64) {
	lo := make([]float64, t.ndim)
	hi := make([]float64, t.ndim)
	for d := range hi {
		hi[d] = 1
	}

	c := t.root
	for !c.IsLeaf() {
		d := c.axis
		a0 := c.children[0].alpha
		f0 := a0 / (a0 + c.children[1].alpha)
		mid := 0.5 * (lo[d] + hi[d])
		if u[d] < f0 {
			u[d] /= f0
			hi[d] = mid
			c = c.children[0]
		} else {
			u[d] = (u[d] - f0) / (1 - f0)
			lo[d] = mid
			c = c.children[1]
		}
		u[d] = math.Min(math.Max(u[d], 0), oneBelow)
	}

	for d := t.nfixed; d < t.ndim; d++ {
		lower[d-t.nfixed] = u[d] < 0.5
		x := lo[d] + u[d]*(hi[d]-lo[d])
		if x >= hi[d] {
			x = math.Nextafter(hi[d], lo[d])
		}
		u[d] = x
	}
	return c, c.volume / c.alpha
}

// locate returns the leaf containing point.
func (t *tree) locate(point []float64) *Cell {
	c := t.root
	lo := make([]float64, t.ndim)
	hi := make([]float64, t.ndim)
	for d := range hi {
		hi[d] = 1
	}
	for !c.IsLeaf() {
		d := c.axis
		mid := 0.5 * (lo[d] + hi[d])
		if point[d] < mid {
			hi[d] = mid
			c = c.children[0]
		} else {
			lo[d] = mid
			c = c.children[1]
		}
	}
	return c
}

// divide turns leaf c into an internal node split at the midpoint of axis.
// Statistics go to the children from c's half statistics, prior is shared
// equally (sampling was uniform inside c), and alpha is shared in the ratio
// share0 : 1-share0.
func (t *tree) divide(c *Cell, axis int, share0 float64) {
	lo, hi := c.block().split(axis - t.nfixed)
	c.axis = axis
	for i, b := range []block{lo, hi} {
		share := share0
		if i == 1 {
			share = 1 - share0
		}
		c.children[i] = &Cell{
			parent: c,
			upper:  i == 1,
			depth:  c.depth + 1,
			volume: 0.5 * c.volume,
			alpha:  c.alpha * share,
			prior:  0.5 * c.prior,
			stats:  b.stats,
			halves: b.halves,
		}
	}
	c.halves = nil
}

// rollup recomputes the cached alpha, prior and statistics of every internal
// node from the leaves below it.
func (t *tree) rollup() {
	var visit func(c *Cell)
	visit = func(c *Cell) {
		if c.IsLeaf() {
			return
		}
		c0, c1 := c.children[0], c.children[1]
		visit(c0)
		visit(c1)
		c.alpha = c0.alpha + c1.alpha
		c.prior = c0.prior + c1.prior
		c.stats = c0.stats
		c.stats.add(c1.stats)
	}
	visit(t.root)
}

// collapse sums the subtree under c into one block. Half statistics are
// exact: along c's own axis the lower half is the lower child, along any
// other axis the children's halves add up.
func (t *tree) collapse(c *Cell) block {
	if c.IsLeaf() {
		return c.block()
	}
	lo := t.collapse(c.children[0])
	hi := t.collapse(c.children[1])
	out := block{stats: lo.stats, halves: make([]Stats, t.nadapt())}
	out.stats.add(hi.stats)
	for k := range out.halves {
		if k == c.axis-t.nfixed {
			out.halves[k] = lo.stats
			continue
		}
		out.halves[k] = lo.halves[k]
		out.halves[k].add(hi.halves[k])
	}
	return out
}

// push adds b to the subtree under c, apportioning it at every internal node
// along that node's axis.
func (t *tree) push(c *Cell, b block) {
	if c.IsLeaf() {
		c.stats.add(b.stats)
		for k := range c.halves {
			c.halves[k].add(b.halves[k])
		}
		return
	}
	lo, hi := b.split(c.axis - t.nfixed)
	t.push(c.children[0], lo)
	t.push(c.children[1], hi)
}

// merge adds the statistics of the incoming subtree inc into the local
// subtree cur, refining cur wherever inc is finer. Local probabilities win
// where both trees define a region. Returns the number of local splits.
func (t *tree) merge(cur, inc *Cell) int {
	switch {
	case inc.IsLeaf():
		t.push(cur, inc.block())
		return 0
	case cur.IsLeaf():
		share0 := inc.children[0].alpha / inc.alpha
		t.divide(cur, inc.axis, share0)
		// prior follows the incoming relative mass as well
		cur.children[0].prior = cur.prior * inc.children[0].prior / inc.prior
		cur.children[1].prior = cur.prior - cur.children[0].prior
		return 1 + t.merge(cur.children[0], inc.children[0]) + t.merge(cur.children[1], inc.children[1])
	case cur.axis == inc.axis:
		return t.merge(cur.children[0], inc.children[0]) + t.merge(cur.children[1], inc.children[1])
	default:
		t.push(cur, t.collapse(inc))
		return 0
	}
}
