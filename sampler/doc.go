// Package sampler provides the adaptive importance sampler: Monte Carlo
// points drawn from the N-dimensional unit hypercube with a density refined
// iteratively to track an unknown integrand.
//
// # Reading Guide
//
// Start with these files:
//   - cell.go: Cell statistics, probabilities and paths
//   - tree.go: midpoint partition tree, sampling descent, refinement and merge alignment
//   - sampler.go: Sample/Feedback loop and the estimators (Result, Reweighted, Efficiency)
//   - adapt.go: the adaptation engine
//   - state.go: text state files (SaveState, RestoreState, MergeState)
//   - diagnostics.go: CheckSubsets and DisplayTree
//
// # Usage
//
// A driver constructs a Sampler, then repeatedly calls Sample, evaluates the
// integrand at the returned point and reports the value with Feedback. Adapt
// refines the tree from the accumulated statistics; SaveState persists it so
// the next run can RestoreState and sample from the improved density.
//
// # Concurrency
//
// A Sampler is a single-goroutine object. Parallel runs each own a Sampler
// with an independent RandomSource (see PartitionedRNG) and are pooled
// afterwards with MergeState or MergeFrom; sampler/pool does this in-process.
//
// # Sub-packages
//   - sampler/trace: records of adaptation decisions
//   - sampler/pool: independent parallel workers pooled into one estimator
//   - sampler/integrand: built-in test integrands with known integrals
package sampler
