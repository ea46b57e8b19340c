package cli

import (
	"github.com/spf13/cobra"

	"github.com/headline-goat/abacus/internal/server"
	"github.com/headline-goat/abacus/internal/store"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var (
		port  int
		token string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the abacus HTTP API server.

The server provides:
  - Simulation, sample size and power curve endpoints under /api
  - Evaluation, correction and sequential endpoints under /api
  - Read access to saved scenarios
  - Health check at /health and Prometheus metrics at /metrics

Set --token (or ABACUS_API_TOKEN) to require a bearer token on /api.

Example:
  abacus serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				srv := server.New(s, server.Options{
					Port:    port,
					Workers: workers,
					Token:   token,
					Logger:  logger,
				})
				return srv.Start()
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", settings.Port, "port to listen on")
	cmd.Flags().StringVar(&token, "token", settings.APIToken, "bearer token required on /api routes")

	return cmd
}
