package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/asampler/sampler"
	"github.com/inference-sim/asampler/sampler/trace"
)

var (
	// adapt command flags
	adaptOutput       string  // Output state file
	adaptThresholdPct float64 // Sampling threshold (%)
	adaptVerbosity    int     // Report verbosity
	adaptCheckCount   int64   // Internal generator check sample count
	adaptStatsOnly    bool    // Report statistics without adapting
	adaptConfigPath   string  // YAML file with adaptation parameters
	adaptSeed         int64   // Seed of the internal generator check
	adaptTraceLevel   string  // Adaptation trace level
)

// adaptOptions carries everything one adapt run needs.
type adaptOptions struct {
	Inputs     []string
	Output     string
	Config     sampler.AdaptConfig
	Verbosity  int
	CheckCount int64
	StatsOnly  bool
	Seed       int64
	TraceLevel trace.TraceLevel
}

// adaptCmd pools state files and performs one round of adaptation
var adaptCmd = &cobra.Command{
	Use:   "adapt [flags] <input> [<input>...]",
	Short: "Merge sampler state files and perform one round of adaptation",
	Long: `Reads one or more state files written by independent sampling jobs over the
same domain, pools their statistics, reports the integral estimate and
adapts the partition tree. The result is written to --output, ready to be
restored by the next round of jobs.

Exits 0 when adaptation changed the tree and 1 when it did not, so scripts
can iterate until convergence.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveAdaptConfig(cmd, adaptConfigPath, adaptThresholdPct)
		if err != nil {
			logrus.Fatalf("Invalid adaptation config: %v", err)
		}
		if !trace.IsValidTraceLevel(adaptTraceLevel) {
			logrus.Fatalf("Invalid trace level: %s", adaptTraceLevel)
		}
		code, err := runAdapt(adaptOptions{
			Inputs:     args,
			Output:     adaptOutput,
			Config:     cfg,
			Verbosity:  adaptVerbosity,
			CheckCount: adaptCheckCount,
			StatsOnly:  adaptStatsOnly,
			Seed:       adaptSeed,
			TraceLevel: trace.TraceLevel(adaptTraceLevel),
		}, cmd.OutOrStdout())
		if err != nil {
			logrus.Fatalf("adapt: %v", err)
		}
		exitCode = code
	},
}

// runAdapt executes the adapt driver and returns the process exit code.
func runAdapt(opts adaptOptions, out io.Writer) (int, error) {
	ndim, nfixed, err := sampler.ReadStateHeader(opts.Inputs[0])
	if err != nil {
		return 1, err
	}
	rngs := sampler.NewPartitionedRNG(sampler.NewSimulationKey(opts.Seed))
	s, err := loadInputs(opts.Inputs, ndim, nfixed, rngs.Source(sampler.SubsystemCheck), opts.Config)
	if err != nil {
		return 1, err
	}

	if opts.CheckCount > 0 {
		s.ResetStats()
		s.CheckSubsets()
		fixedRNG := rngs.ForSubsystem(sampler.SubsystemFixed)
		fixed := make([]float64, nfixed)
		for i := int64(0); i < opts.CheckCount; i++ {
			for j := range fixed {
				fixed[j] = fixedRNG.Float64()
			}
			x, _, err := s.SampleWithFixed(fixed)
			if err != nil {
				return 1, err
			}
			if err := s.Feedback(x, 1); err != nil {
				return 1, err
			}
		}
		logrus.Infof("adapt: internal check drew %d samples", opts.CheckCount)
	}

	verbose := opts.Verbosity > 0
	if verbose {
		fmt.Fprintf(out, "sample size N = %g\n", s.Nsample())
	}
	if est, err := s.Result(); err == nil && est.Value > 0 {
		if verbose {
			fmt.Fprintf(out, "result = %g +/- %g +/- %g, efficiency = %g\n",
				est.Value, est.Error, est.ErrorUncertainty, efficiencyOrZero(s, false))
		}
	} else if verbose {
		fmt.Fprintln(out, "result unknown")
	}

	if verbose {
		if warnings := s.CheckSubsets(); warnings > 0 {
			fmt.Fprintf(out, "%d warnings from check_subsets, there seem to be problems with this tree!\n", warnings)
		}
	}

	changes := 0
	if !opts.StatsOnly {
		at := trace.NewAdaptationTrace(opts.TraceLevel)
		s.SetTrace(at)
		changes, err = s.Adapt(opts.Config.Threshold)
		if err != nil {
			return 1, err
		}
		if verbose {
			fmt.Fprintf(out, "adapt returns %d\n", changes)
			if est, err := s.Reweighted(); err == nil {
				fmt.Fprintf(out, "improved result = %g +/- %g +/- %g, efficiency = %g\n",
					est.Value, est.Error, est.ErrorUncertainty, efficiencyOrZero(s, true))
			} else {
				fmt.Fprintln(out, "improved result unknown")
			}
		}
		if at != nil && opts.Verbosity > 1 {
			printTraceSummary(out, trace.Summarize(at))
		}
	}

	if err := s.SaveState(opts.Output, !opts.StatsOnly); err != nil {
		return 1, err
	}
	if opts.Verbosity > 2 {
		if err := s.DisplayTree(out, !opts.StatsOnly); err != nil {
			return 1, err
		}
	}
	if changes == 0 {
		return 1, nil
	}
	return 0, nil
}

// loadInputs parses every input concurrently, then merges them in argument
// order so the pooled state does not depend on scheduling.
func loadInputs(paths []string, ndim, nfixed int, source sampler.RandomSource, cfg sampler.AdaptConfig) (*sampler.Sampler, error) {
	parsed := make([]*sampler.Sampler, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			s, err := sampler.RestoreState(path, ndim, nfixed, source, cfg)
			if err != nil {
				return err
			}
			parsed[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pooled := parsed[0]
	for i := 1; i < len(parsed); i++ {
		if err := pooled.Merge(parsed[i]); err != nil {
			return nil, fmt.Errorf("merging %s: %w", paths[i], err)
		}
		logrus.Debugf("adapt: merged %s, N=%g", paths[i], pooled.Nsample())
	}
	return pooled, nil
}

func efficiencyOrZero(s *sampler.Sampler, reweighted bool) float64 {
	eff, err := s.Efficiency(reweighted)
	if err != nil {
		return 0
	}
	return eff
}

func printTraceSummary(out io.Writer, summary *trace.TraceSummary) {
	fmt.Fprintf(out, "=== Adaptation Trace ===\n")
	fmt.Fprintf(out, "passes: %d, splits: %d, max depth: %d\n", summary.Passes, summary.TotalSplits, summary.MaxDepth)
	fmt.Fprintf(out, "gain: mean %.4g, max %.4g\n", summary.MeanGain, summary.MaxGain)
	axes := make([]int, 0, len(summary.SplitsPerAxis))
	for axis := range summary.SplitsPerAxis {
		axes = append(axes, axis)
	}
	sort.Ints(axes)
	for _, axis := range axes {
		fmt.Fprintf(out, "  x%d: %d splits\n", axis, summary.SplitsPerAxis[axis])
	}
}

func init() {
	adaptCmd.Flags().StringVarP(&adaptOutput, "output", "o", "adapted.astate", "Output state file")
	adaptCmd.Flags().Float64VarP(&adaptThresholdPct, "threshold", "t", 1, "Sampling threshold (%): largest share of the total probability one cell may carry")
	adaptCmd.Flags().IntVarP(&adaptVerbosity, "verbosity", "v", 1, "Verbosity level (0 silent, >1 trace summary, >2 tree dump)")
	adaptCmd.Flags().Int64VarP(&adaptCheckCount, "check", "c", 0, "Internal generator check: reset statistics and draw this many samples")
	adaptCmd.Flags().BoolVarP(&adaptStatsOnly, "stats-only", "s", false, "Just report statistics, no adaptation")
	adaptCmd.Flags().StringVar(&adaptConfigPath, "config", "", "YAML file with adaptation parameters")
	adaptCmd.Flags().Int64Var(&adaptSeed, "seed", 42, "Seed of the internal generator check")
	adaptCmd.Flags().StringVar(&adaptTraceLevel, "trace", "none", "Adaptation trace level (none, splits)")

	rootCmd.AddCommand(adaptCmd)
}

