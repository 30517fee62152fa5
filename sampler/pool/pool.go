// Package pool runs independent samplers concurrently over a built-in
// integrand and pools their statistics into one state, the same way separate
// jobs are combined with `asampler adapt`.
package pool

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/asampler/sampler"
	"github.com/inference-sim/asampler/sampler/integrand"
)

// ctxCheckInterval is how many samples a worker draws between context checks.
const ctxCheckInterval = 1024

// Config describes one pooled run.
type Config struct {
	Workers          int
	SamplesPerWorker int
	Ndim             int
	Nfixed           int
	Seed             int64
	Adapt            sampler.AdaptConfig

	// StatePath, when set, names a state file every worker restores and
	// resets before sampling, so all workers share its adapted tree.
	StatePath string

	// OutputDir, when set, receives one state file per worker.
	OutputDir string
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", sampler.ErrInvalidConfig, c.Workers)
	}
	if c.SamplesPerWorker < 1 {
		return fmt.Errorf("%w: samples per worker must be >= 1, got %d", sampler.ErrInvalidConfig, c.SamplesPerWorker)
	}
	if c.Ndim < 1 || c.Nfixed < 0 || c.Nfixed > c.Ndim {
		return fmt.Errorf("%w: Ndim=%d, Nfixed=%d", sampler.ErrInvalidDimensions, c.Ndim, c.Nfixed)
	}
	return c.Adapt.Validate()
}

// WorkerResult is the outcome of one worker.
type WorkerResult struct {
	ID        int
	Estimate  sampler.Estimate
	StatePath string // empty unless Config.OutputDir is set
}

// Report is the outcome of a pooled run.
type Report struct {
	Workers []WorkerResult

	// Pooled holds the merged statistics of every worker.
	Pooled *sampler.Sampler

	// Spread is the standard deviation of the worker estimates; Pull is
	// Spread divided by the mean reported worker error, close to 1 when the
	// reported errors are honest.
	Mean   float64
	Spread float64
	Pull   float64
}

// Run draws SamplesPerWorker points in each of Workers goroutines and merges
// the resulting states in worker order. Every worker's stream is derived from
// Seed before fanning out, so the pooled state does not depend on scheduling.
func Run(ctx context.Context, cfg Config, f integrand.Integrand) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var initial []byte
	if cfg.StatePath != "" {
		data, err := os.ReadFile(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("reading initial state: %w", err)
		}
		initial = data
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}

	rngs := sampler.NewPartitionedRNG(sampler.NewSimulationKey(cfg.Seed))
	sources := make([]sampler.RandomSource, cfg.Workers)
	for i := range sources {
		sources[i] = rngs.Source(sampler.SubsystemWorker(i))
	}

	states := make([][]byte, cfg.Workers)
	results := make([]WorkerResult, cfg.Workers)

	g, gCtx := errgroup.WithContext(ctx)
	for i := range sources {
		i := i
		g.Go(func() error {
			s, err := newWorkerSampler(cfg, initial, sources[i])
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			if err := drive(gCtx, s, f, cfg.SamplesPerWorker); err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			est, err := s.Result()
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}

			var buf bytes.Buffer
			if err := s.WriteState(&buf, true); err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			states[i] = buf.Bytes()
			results[i] = WorkerResult{ID: i, Estimate: est}

			if cfg.OutputDir != "" {
				path := filepath.Join(cfg.OutputDir, fmt.Sprintf("worker_%d.astate", i))
				if err := os.WriteFile(path, states[i], 0o644); err != nil {
					return fmt.Errorf("worker %d: %w", i, err)
				}
				results[i].StatePath = path
			}
			logrus.Debugf("pool: worker %d result %.6g +/- %.3g", i, est.Value, est.Error)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pooled, err := sampler.RestoreFrom(bytes.NewReader(states[0]), cfg.Ndim, cfg.Nfixed,
		rngs.Source(sampler.SubsystemSampler), cfg.Adapt)
	if err != nil {
		return nil, fmt.Errorf("pooling worker 0: %w", err)
	}
	for i := 1; i < len(states); i++ {
		if err := pooled.MergeFrom(bytes.NewReader(states[i])); err != nil {
			return nil, fmt.Errorf("pooling worker %d: %w", i, err)
		}
	}

	report := &Report{Workers: results, Pooled: pooled}
	report.summarize()
	logrus.Infof("pool: %d workers, N=%g, spread=%.3g, pull=%.3g",
		cfg.Workers, pooled.Nsample(), report.Spread, report.Pull)
	return report, nil
}

func newWorkerSampler(cfg Config, initial []byte, source sampler.RandomSource) (*sampler.Sampler, error) {
	if initial == nil {
		return sampler.New(cfg.Ndim, cfg.Nfixed, source, cfg.Adapt)
	}
	s, err := sampler.RestoreFrom(bytes.NewReader(initial), cfg.Ndim, cfg.Nfixed, source, cfg.Adapt)
	if err != nil {
		return nil, err
	}
	s.ResetStats()
	return s, nil
}

// drive samples f n times, feeding every value back.
func drive(ctx context.Context, s *sampler.Sampler, f integrand.Integrand, n int) error {
	for k := 0; k < n; k++ {
		if k%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		x, _ := s.Sample()
		if err := s.Feedback(x, f.Eval(x)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) summarize() {
	if len(r.Workers) == 0 {
		return
	}
	values := make([]float64, len(r.Workers))
	errs := make([]float64, len(r.Workers))
	for i, w := range r.Workers {
		values[i] = w.Estimate.Value
		errs[i] = w.Estimate.Error
	}
	if len(values) < 2 {
		r.Mean = values[0]
		return
	}
	r.Mean, r.Spread = stat.MeanStdDev(values, nil)
	if meanErr := stat.Mean(errs, nil); meanErr > 0 {
		r.Pull = r.Spread / meanErr
	} else {
		r.Pull = math.NaN()
	}
}
