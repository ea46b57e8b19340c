package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/bayes"
	"github.com/headline-goat/abacus/internal/power"
)

func init() {
	rootCmd.AddCommand(newSimulateCmd())
}

func newSimulateCmd() *cobra.Command {
	var (
		flags       paramFlags
		test        string
		yates       bool
		priorA      float64
		priorB      float64
		threshold   float64
		samples     int
		interactive bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Estimate power or Type-I error by Monte Carlo",
		Long: `Simulate many A/B tests with known conversion rates and report how often
the chosen test rejects the null hypothesis. With --effect 0 the rejection
rate estimates the Type-I error; otherwise it estimates power.

Examples:
  abacus simulate --baseline 0.11 --effect 0.02 --n 2000 --seed 42
  abacus simulate --baseline 0.2 --effect 0 --n 5000 -s 20000
  abacus simulate --scenario checkout --test bayes
  abacus simulate --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if interactive {
				if params, err = promptParams(params); err != nil {
					return err
				}
			}

			cfg, err := abtest.NewConfig(params)
			if err != nil {
				return err
			}

			eval, err := newEvaluator(test, cfg, yates, bayes.Prior{A: priorA, B: priorB}, bayes.Options{Threshold: threshold, Samples: samples})
			if err != nil {
				return err
			}

			sim := power.Simulator{Workers: workers, Evaluator: eval, Logger: logger}
			summary, err := sim.Run(context.Background(), cfg)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			printSummary(cmd.OutOrStdout(), cfg, summary)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&test, "test", "t", "z", "test to apply to each replicate (z, chi2, bayes)")
	cmd.Flags().BoolVar(&yates, "yates", false, "apply Yates continuity correction (chi2)")
	cmd.Flags().Float64Var(&priorA, "prior-a", 1, "Beta prior alpha (bayes)")
	cmd.Flags().Float64Var(&priorB, "prior-b", 1, "Beta prior beta (bayes)")
	cmd.Flags().Float64Var(&threshold, "threshold", bayes.DefaultThreshold, "P(treatment > control) needed to reject (bayes)")
	cmd.Flags().IntVar(&samples, "posterior-samples", bayes.DefaultSamples, "posterior draws per replicate (bayes)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for parameters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")

	return cmd
}

func newEvaluator(test string, cfg abtest.Config, yates bool, prior bayes.Prior, opts bayes.Options) (power.Evaluator, error) {
	switch test {
	case "z", "":
		return power.Frequentist{Alpha: cfg.Alpha(), Confidence: cfg.Confidence()}, nil
	case "chi2":
		return power.ChiSquared{Alpha: cfg.Alpha(), Confidence: cfg.Confidence(), Yates: yates}, nil
	case "bayes":
		return power.Bayesian{Prior: prior, Options: opts}, nil
	default:
		return nil, fmt.Errorf("invalid test %q: must be z, chi2 or bayes", test)
	}
}

func printSummary(w io.Writer, cfg abtest.Config, s abtest.Summary) {
	fmt.Fprintf(w, "METHOD: %s\n", s.Method)
	fmt.Fprintf(w, "RATES: control %s, treatment %s", formatPercent(cfg.BaselineRate()), formatPercent(cfg.TreatmentRate()))
	if cfg.Clamped() {
		fmt.Fprint(w, " (clamped)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ARMS: %s control, %s treatment\n", formatNumber(cfg.ControlN()), formatNumber(cfg.TreatmentN()))
	fmt.Fprintf(w, "REPLICATES: %s (seed %d)\n", formatNumber(s.Simulations), s.Seed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "METRIC               VALUE")
	fmt.Fprintln(w, strings.Repeat("─", 40))
	label := "Empirical power"
	if cfg.NullTrue() {
		label = "Type-I error"
	}
	fmt.Fprintf(w, "%-19s  %.4f ± %.4f\n", label, s.RejectionRate, 1.96*s.MonteCarloSE)
	fmt.Fprintf(w, "%-19s  %s / %s\n", "Rejections", formatNumber(s.Rejections), formatNumber(s.Simulations))
	fmt.Fprintf(w, "%-19s  %+.5f (true %+.5f)\n", "Mean estimate", s.MeanEstimate, s.TrueEffect)
	fmt.Fprintf(w, "%-19s  %+.5f\n", "Median estimate", s.MedianEstimate)
	fmt.Fprintf(w, "%-19s  %.3g\n", "Estimate variance", s.EstimateVariance)
	if s.DegenerateReplicates > 0 {
		fmt.Fprintf(w, "%-19s  %s\n", "Degenerate", formatNumber(s.DegenerateReplicates))
	}

	if !cfg.NullTrue() && s.Method != abtest.MethodBayesian {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Closed-form power at this size: %.4f\n",
			power.Power(cfg.BaselineRate(), cfg.TreatmentRate(), cfg.SampleSize(), cfg.Alpha()))
	}
}
