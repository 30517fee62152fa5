package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/asampler/sampler"
)

var showPriors bool // Show the probabilities the statistics were drawn under

// showCmd prints the partition tree and diagnostics of one state file
var showCmd = &cobra.Command{
	Use:   "show <input>",
	Short: "Print the partition tree and structural diagnostics of a state file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runShow(args[0], !showPriors, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("show: %v", err)
		}
	},
}

func runShow(path string, adapted bool, out io.Writer) error {
	ndim, nfixed, err := sampler.ReadStateHeader(path)
	if err != nil {
		return err
	}
	rngs := sampler.NewPartitionedRNG(sampler.NewSimulationKey(0))
	s, err := sampler.RestoreState(path, ndim, nfixed, rngs.Source(sampler.SubsystemCheck), sampler.DefaultAdaptConfig())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Ndim = %d, Nfixed = %d, cells = %d, sample size N = %g\n", ndim, nfixed, s.Ncells(), s.Nsample())
	if est, err := s.Result(); err == nil {
		fmt.Fprintf(out, "result = %g +/- %g +/- %g, efficiency = %g\n",
			est.Value, est.Error, est.ErrorUncertainty, efficiencyOrZero(s, false))
	} else {
		fmt.Fprintln(out, "result unknown")
	}
	if err := s.DisplayTree(out, adapted); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d warnings from check_subsets\n", s.CheckSubsets())
	return nil
}

func init() {
	showCmd.Flags().BoolVar(&showPriors, "priors", false, "Show the probabilities the statistics were drawn under instead of the adapted ones")

	rootCmd.AddCommand(showCmd)
}
