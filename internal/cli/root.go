package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/headline-goat/abacus/internal/config"
	"github.com/headline-goat/abacus/internal/logging"
)

var (
	settings  = loadSettings()
	dbPath    string
	logLevel  string
	logFormat string
	workers   int
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "abacus",
	Short: "Abacus - Monte Carlo power analysis and inference for A/B tests",
	Long: `Abacus simulates A/B tests on binary conversion outcomes and analyzes them.

It estimates power and Type-I error by simulation, solves for sample size,
evaluates observed data with frequentist and Bayesian tests, corrects
p-values for multiple comparisons and runs group-sequential designs.

Flags default from ABACUS_* environment variables and a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func loadSettings() config.Settings {
	s, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: using default settings:", err)
		return config.Defaults()
	}
	return s
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", settings.DBPath, "scenario database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", settings.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", settings.LogFormat, "log format (console or json)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", settings.Workers, "replicate workers (0 = GOMAXPROCS)")
}
