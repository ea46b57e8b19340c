package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/power"
)

func init() {
	rootCmd.AddCommand(newSampleSizeCmd())
}

func newSampleSizeCmd() *cobra.Command {
	var (
		baseline float64
		effect   float64
		alpha    float64
		target   float64
		relative bool
		mde      int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "samplesize",
		Short: "Solve for the per-arm sample size of a two-proportion test",
		Long: `Compute the smallest per-arm sample size at which a two-sided z-test
reaches the target power, using the normal approximation.

With --mde N, solve the inverse problem instead: the minimum absolute
effect detectable at N per arm.

Examples:
  abacus samplesize --baseline 0.11 --effect 0.02
  abacus samplesize --baseline 0.11 --effect 0.1 --relative --power 0.9
  abacus samplesize --baseline 0.11 --mde 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if mde > 0 {
				effect, err := power.MinimumDetectableEffect(baseline, mde, alpha, target)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, map[string]any{"sample_size": mde, "minimum_detectable_effect": effect})
				}
				fmt.Fprintf(out, "Minimum detectable effect at %s per arm: %+.4f (%s -> %s)\n",
					formatNumber(mde), effect, formatPercent(baseline), formatPercent(baseline+effect))
				return nil
			}

			n, err := power.SampleSize(baseline, effect, alpha, target, relative)
			if err != nil {
				return err
			}
			treatment := baseline + effect
			if relative {
				treatment = baseline * (1 + effect)
			}
			achieved := power.Power(baseline, treatment, n, alpha)

			if asJSON {
				return writeJSON(out, map[string]any{"sample_size": n, "total": 2 * n, "achieved_power": achieved})
			}
			fmt.Fprintf(out, "Per-arm sample size: %s\n", formatNumber(n))
			fmt.Fprintf(out, "Total sample size:   %s\n", formatNumber(2*n))
			fmt.Fprintf(out, "Achieved power:      %.4f\n", achieved)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&baseline, "baseline", "b", 0, "control conversion probability (required)")
	cmd.Flags().Float64VarP(&effect, "effect", "e", 0, "effect to detect (absolute unless --relative)")
	cmd.Flags().Float64VarP(&alpha, "alpha", "a", 0.05, "significance level")
	cmd.Flags().Float64VarP(&target, "power", "p", 0.8, "target power")
	cmd.Flags().BoolVar(&relative, "relative", false, "interpret --effect as a relative lift")
	cmd.Flags().IntVar(&mde, "mde", 0, "solve for the minimum detectable effect at this per-arm size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("baseline")

	return cmd
}
