package cli

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/bayes"
	"github.com/headline-goat/abacus/internal/stats"
	"github.com/headline-goat/abacus/internal/trial"
)

func init() {
	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newBayesCmd())
}

func newEvaluateCmd() *cobra.Command {
	cmd := newAnalyzeCmd("z")
	cmd.Use = "evaluate"
	cmd.Short = "Analyze observed conversion counts"
	cmd.Long = `Evaluate observed control and treatment counts with a z-test, a 2x2
chi-square test or the Beta-Binomial posterior.

Examples:
  abacus evaluate --control 110/1000 --treatment 140/1000
  abacus evaluate --control 110/1000 --treatment 140/1000 --test chi2 --yates
  abacus evaluate --control 110/1000 --treatment 140/1000 --test bayes --exact`
	return cmd
}

// newBayesCmd is evaluate with the Beta-Binomial engine selected.
func newBayesCmd() *cobra.Command {
	cmd := newAnalyzeCmd("bayes")
	cmd.Use = "bayes"
	cmd.Short = "Compute posteriors and P(treatment > control) for observed counts"
	cmd.Long = `Update a Beta prior with observed control and treatment counts and report
the posterior probability that treatment beats control.

Examples:
  abacus bayes --control 110/1000 --treatment 140/1000
  abacus bayes --control 110/1000 --treatment 140/1000 --prior-a 2 --prior-b 20 --exact`
	return cmd
}

func newAnalyzeCmd(defaultTest string) *cobra.Command {
	var (
		outcome    abtest.Outcome
		alpha      float64
		confidence float64
		test       string
		yates      bool
		priorA     float64
		priorB     float64
		threshold  float64
		samples    int
		exact      bool
		seed       uint64
		asJSON     bool
	)

	cmd := &cobra.Command{
		RunE: func(cmd *cobra.Command, args []string) error {
			if confidence == 0 {
				confidence = 1 - alpha
			}

			var (
				res abtest.Result
				err error
			)
			switch test {
			case "z":
				res, err = stats.ZTest(outcome, alpha, confidence)
			case "chi2":
				res, err = stats.ChiSquare(outcome, alpha, confidence, yates)
			case "bayes":
				if !cmd.Flags().Changed("seed") {
					seed = rand.Uint64()
				}
				opts := bayes.Options{Samples: samples, Width: confidence, Threshold: threshold, Exact: exact}
				res, err = bayes.Evaluate(outcome, bayes.Prior{A: priorA, B: priorB}, opts, trial.Source(seed, 0))
			default:
				return fmt.Errorf("invalid test %q: must be z, chi2 or bayes", test)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), outcome, res)
			return nil
		},
	}

	cmd.Flags().Var(&arm{&outcome.ControlConversions, &outcome.ControlN}, "control", "control conversions/visitors, e.g. 110/1000 (required)")
	cmd.Flags().Var(&arm{&outcome.TreatmentConversions, &outcome.TreatmentN}, "treatment", "treatment conversions/visitors (required)")
	cmd.Flags().Float64VarP(&alpha, "alpha", "a", 0.05, "significance level")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "interval confidence level (default: 1 - alpha)")
	cmd.Flags().StringVarP(&test, "test", "t", defaultTest, "test to apply (z, chi2, bayes)")
	cmd.Flags().BoolVar(&yates, "yates", false, "apply Yates continuity correction (chi2)")
	cmd.Flags().Float64Var(&priorA, "prior-a", 1, "Beta prior alpha (bayes)")
	cmd.Flags().Float64Var(&priorB, "prior-b", 1, "Beta prior beta (bayes)")
	cmd.Flags().Float64Var(&threshold, "threshold", bayes.DefaultThreshold, "P(treatment > control) needed to reject (bayes)")
	cmd.Flags().IntVar(&samples, "posterior-samples", bayes.DefaultSamples, "posterior draws (bayes)")
	cmd.Flags().BoolVar(&exact, "exact", false, "compute P(treatment > control) in closed form (bayes)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for posterior sampling (bayes)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("control")
	_ = cmd.MarkFlagRequired("treatment")

	return cmd
}

// arm is a pflag.Value parsing "conversions/visitors".
type arm struct {
	conversions *int
	visitors    *int
}

func (a *arm) String() string {
	if a.conversions == nil {
		return ""
	}
	return fmt.Sprintf("%d/%d", *a.conversions, *a.visitors)
}

func (a *arm) Set(s string) error {
	var conv, n int
	if _, err := fmt.Sscanf(s, "%d/%d", &conv, &n); err != nil {
		return fmt.Errorf("expected conversions/visitors, got %q", s)
	}
	*a.conversions = conv
	*a.visitors = n
	return nil
}

func (a *arm) Type() string { return "counts" }

func printResult(w io.Writer, o abtest.Outcome, res abtest.Result) {
	fmt.Fprintf(w, "METHOD: %s\n", res.Method)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ARM         VISITORS   CONVERSIONS  RATE     INTERVAL")
	fmt.Fprintln(w, strings.Repeat("─", 64))
	fmt.Fprintf(w, "%-10s  %-9s  %-11s  %-7s  %s\n", "control",
		formatNumber(o.ControlN), formatNumber(o.ControlConversions), formatPercent(o.ControlRate()), formatInterval(res.ControlInterval))
	fmt.Fprintf(w, "%-10s  %-9s  %-11s  %-7s  %s\n", "treatment",
		formatNumber(o.TreatmentN), formatNumber(o.TreatmentConversions), formatPercent(o.TreatmentRate()), formatInterval(res.TreatmentInterval))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Difference: %+.4f %s\n", res.Estimate, formatInterval(res.Interval))
	fmt.Fprintf(w, "Relative lift: %+.2f%%\n", res.RelativeLift*100)
	if res.Method == abtest.MethodBayesian {
		fmt.Fprintf(w, "P(treatment > control): %.4f\n", res.ProbabilitySuperior)
		fmt.Fprintf(w, "Expected loss: %.6f\n", res.ExpectedLoss)
	} else {
		fmt.Fprintf(w, "Statistic: %.4f  p-value: %.4g\n", res.Statistic, res.PValue)
	}
	fmt.Fprintln(w)

	switch {
	case res.Degenerate:
		fmt.Fprintln(w, "Not enough variation in the data to test.")
	case res.RejectNull:
		fmt.Fprintln(w, "Significant: reject the null hypothesis")
	default:
		fmt.Fprintln(w, "Not significant: cannot reject the null hypothesis")
	}
}
