package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/power"
)

func init() {
	rootCmd.AddCommand(newCurveCmd())
}

func newCurveCmd() *cobra.Command {
	var (
		flags    paramFlags
		from     int
		to       int
		step     int
		simulate bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Tabulate power against sample size",
		Long: `Print closed-form power for a range of per-arm sample sizes, optionally
alongside simulated power at each size.

Examples:
  abacus curve --baseline 0.11 --effect 0.02 --from 500 --to 5000 --step 500
  abacus curve --scenario checkout --from 1000 --to 8000 --step 1000 --simulate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			sizes, err := power.Sizes(from, to, step)
			if err != nil {
				return err
			}
			if params.SampleSize == 0 {
				params.SampleSize = sizes[len(sizes)-1]
			}
			cfg, err := abtest.NewConfig(params)
			if err != nil {
				return err
			}

			closed, err := power.Curve(cfg, sizes)
			if err != nil {
				return err
			}
			var simulated []power.Point
			if simulate {
				sim := power.Simulator{Workers: workers, Logger: logger}
				if simulated, err = sim.SimulatedCurve(context.Background(), cfg, sizes); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"closed_form": closed, "simulated": simulated})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			header := []string{"N PER ARM", "POWER"}
			if simulate {
				header = append(header, "SIMULATED")
			}
			fmt.Fprintln(w, strings.Join(header, "\t"))
			for i, pt := range closed {
				row := []string{formatNumber(pt.SampleSize), fmt.Sprintf("%.4f", pt.Power)}
				if simulate {
					row = append(row, fmt.Sprintf("%.4f", simulated[i].Power))
				}
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			return w.Flush()
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&from, "from", 500, "smallest per-arm sample size")
	cmd.Flags().IntVar(&to, "to", 5000, "largest per-arm sample size")
	cmd.Flags().IntVar(&step, "step", 500, "sample size increment")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "also estimate power by simulation at each size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the curve as JSON")

	return cmd
}
