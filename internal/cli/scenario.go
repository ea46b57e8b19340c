package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/store"
)

func init() {
	rootCmd.AddCommand(newScenarioCmd())
}

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage saved experiment scenarios",
		Long: `Save experiment parameters under a name so simulate, curve and
sequential can reuse them with --scenario.`,
	}
	cmd.AddCommand(newScenarioSaveCmd(), newScenarioListCmd(), newScenarioShowCmd(), newScenarioDeleteCmd())
	return cmd
}

func newScenarioSaveCmd() *cobra.Command {
	var (
		flags       paramFlags
		description string
	)

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save or update a scenario",
		Long: `Save experiment parameters under a name. Saving an existing name
replaces its parameters.

Examples:
  abacus scenario save checkout --baseline 0.11 --effect 0.02 --n 2000
  abacus scenario save checkout --file checkout.yaml -d "Q3 checkout redesign"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				sc, err := s.SaveScenario(context.Background(), args[0], description, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved scenario '%s'\n", sc.Name)
				return nil
			})
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&description, "description", "d", "", "scenario description")

	return cmd
}

func newScenarioListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				scenarios, err := s.ListScenarios(context.Background())
				if err != nil {
					return err
				}

				if len(scenarios) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scenarios yet.")
					fmt.Fprintln(cmd.OutOrStdout(), "Save one with: abacus scenario save <name> --baseline 0.1 --effect 0.02 --n 2000")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tBASELINE\tEFFECT\tN PER ARM\tALPHA\tSIMULATIONS\tUPDATED")
				for _, sc := range scenarios {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3g\t%s\t%s\n",
						sc.Name,
						formatPercent(sc.Params.BaselineRate),
						formatEffect(sc.Params),
						formatNumber(sc.Params.SampleSize),
						sc.Params.Alpha,
						formatNumber(sc.Params.Simulations),
						sc.UpdatedAt.Format("2006-01-02"),
					)
				}
				return w.Flush()
			})
		},
	}
}

func newScenarioShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a scenario as YAML",
		Long: `Print a saved scenario's parameters as YAML, suitable for --file.

Example:
  abacus scenario show checkout > checkout.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				sc, err := s.GetScenario(context.Background(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("scenario '%s' not found", args[0])
				}
				if err != nil {
					return err
				}
				if sc.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", sc.Description)
				}
				encoder := yaml.NewEncoder(cmd.OutOrStdout())
				defer encoder.Close()
				return encoder.Encode(sc.Params)
			})
		},
	}
}

func newScenarioDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				err := s.DeleteScenario(context.Background(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("scenario '%s' not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted scenario '%s'\n", args[0])
				return nil
			})
		},
	}
}

func formatEffect(p abtest.Params) string {
	if p.Relative {
		return fmt.Sprintf("%+.1f%% rel", p.EffectSize*100)
	}
	return fmt.Sprintf("%+.4f", p.EffectSize)
}
