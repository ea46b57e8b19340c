package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/sequential"
)

func init() {
	rootCmd.AddCommand(newSequentialCmd())
}

func newSequentialCmd() *cobra.Command {
	var (
		flags    paramFlags
		looks    int
		spending string
		rho      float64
		futility float64
		batches  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "sequential",
		Short: "Run or simulate a group-sequential test",
		Long: `Plan a group-sequential test with an alpha-spending function.

With --batches, replay observed per-look data (a JSON array of outcomes)
through the plan and report the decision at each look. Otherwise simulate
the plan on the configured experiment and report its rejection rate,
which under --effect 0 is the overall Type-I error.

Examples:
  abacus sequential --baseline 0.1 --effect 0 --n 4000 --looks 5 -s 5000
  abacus sequential --looks 4 --spending pocock --batches looks.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spend, err := sequential.ParseSpending(spending, rho)
			if err != nil {
				return err
			}
			plan := sequential.Plan{Alpha: flags.params.Alpha, MaxLooks: looks, Spending: spend}
			if cmd.Flags().Changed("futility-z") {
				plan.FutilityZ = &futility
			}

			if batches != "" {
				return replayBatches(cmd.OutOrStdout(), plan, batches, asJSON)
			}

			params, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			cfg, err := abtest.NewConfig(params)
			if err != nil {
				return err
			}
			plan.Alpha = cfg.Alpha()

			sim := sequential.Simulator{Workers: workers, Logger: logger}
			res, err := sim.Run(context.Background(), cfg, plan)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSimulation(cmd.OutOrStdout(), cfg, plan, res)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().IntVarP(&looks, "looks", "k", 5, "number of equally spaced looks")
	cmd.Flags().StringVar(&spending, "spending", "obrien-fleming", "alpha-spending function (obrien-fleming, pocock, linear, power)")
	cmd.Flags().Float64Var(&rho, "rho", 1, "exponent of the power spending family")
	cmd.Flags().Float64Var(&futility, "futility-z", 0, "stop for futility when the interim z falls below this")
	cmd.Flags().StringVar(&batches, "batches", "", "JSON file of per-look outcomes to replay")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func replayBatches(w io.Writer, plan sequential.Plan, path string, asJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read batches: %w", err)
	}
	var outcomes []abtest.Outcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return fmt.Errorf("failed to parse batches: %w", err)
	}

	state, err := sequential.New(plan)
	if err != nil {
		return err
	}
	for _, batch := range outcomes {
		if state.Terminal() {
			break
		}
		if _, err := state.Advance(batch); err != nil {
			return err
		}
	}

	if asJSON {
		return writeJSON(w, map[string]any{"decision": state.Decision(), "spent_alpha": state.SpentAlpha(), "looks": state.Looks()})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOOK\tFRACTION\tCONTROL\tTREATMENT\tZ\tP-VALUE\tBOUNDARY\tDECISION")
	for _, l := range state.Looks() {
		fmt.Fprintf(tw, "%d\t%.2f\t%d/%d\t%d/%d\t%.3f\t%.4g\t%.4g\t%s\n",
			l.Index, l.Fraction,
			l.Data.ControlConversions, l.Data.ControlN,
			l.Data.TreatmentConversions, l.Data.TreatmentN,
			l.Result.Statistic, l.Result.PValue, l.Boundary, l.Decision)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nDecision: %s (alpha spent %.4g of %.4g)\n", state.Decision(), state.SpentAlpha(), plan.Alpha)
	return nil
}

func printSimulation(w io.Writer, cfg abtest.Config, plan sequential.Plan, res sequential.SimulationResult) {
	fmt.Fprintf(w, "PLAN: %d looks, %s spending, alpha %.3g\n", plan.MaxLooks, plan.Spending.Name(), plan.Alpha)
	fmt.Fprintf(w, "RATES: control %s, treatment %s\n", formatPercent(cfg.BaselineRate()), formatPercent(cfg.TreatmentRate()))
	fmt.Fprintf(w, "REPLICATES: %s (seed %d)\n", formatNumber(res.Simulations), res.Seed)
	fmt.Fprintln(w)

	label := "Power"
	if cfg.NullTrue() {
		label = "Type-I error"
	}
	fmt.Fprintf(w, "%-18s  %.4f\n", label, res.RejectionRate)
	fmt.Fprintf(w, "%-18s  %.2f\n", "Mean looks", res.MeanLooks)
	fmt.Fprintf(w, "%-18s  %.0f\n", "Mean sample size", res.MeanSampleSize)
	fmt.Fprintf(w, "%-18s  %.4g\n", "Max alpha spent", res.MaxSpentAlpha)

	decisions := make([]string, 0, len(res.Stops))
	for d := range res.Stops {
		decisions = append(decisions, string(d))
	}
	sort.Strings(decisions)
	fmt.Fprintln(w)
	for _, d := range decisions {
		fmt.Fprintf(w, "%-18s  %s\n", d, formatNumber(res.Stops[sequential.Decision(d)]))
	}
}
