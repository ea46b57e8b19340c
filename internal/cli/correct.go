package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/correction"
)

func init() {
	rootCmd.AddCommand(newCorrectCmd())
}

func newCorrectCmd() *cobra.Command {
	var (
		method string
		alpha  float64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "correct <p-value>...",
		Short: "Adjust p-values for multiple comparisons",
		Long: `Adjust a family of p-values with Bonferroni, Holm or Benjamini-Hochberg
and report which hypotheses are rejected.

Examples:
  abacus correct 0.01 0.04 0.03 0.20
  abacus correct --method bonferroni 0.001 0.02 0.049`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pValues := make([]float64, len(args))
			for i, arg := range args {
				p, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
				if err != nil {
					return fmt.Errorf("invalid p-value %q", arg)
				}
				pValues[i] = p
			}

			m, err := correction.ParseMethod(method)
			if err != nil {
				return err
			}
			batch, err := correction.Correct(pValues, alpha, m)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), batch)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tP-VALUE\tADJUSTED\tRANK\tDECISION")
			for _, e := range batch.Entries {
				decision := "keep"
				if e.Reject {
					decision = "REJECT"
				}
				fmt.Fprintf(w, "%d\t%.4g\t%.4g\t%d\t%s\n", e.Index, e.PValue, e.Adjusted, e.Rank, decision)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d rejected (%s, alpha %.3g)\n", batch.Rejections, len(batch.Entries), batch.Method, batch.Alpha)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", string(correction.BenjaminiHochberg), "correction method (bonferroni, holm, fdr_bh)")
	cmd.Flags().Float64VarP(&alpha, "alpha", "a", 0.05, "family-wise error rate or false discovery rate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}
