package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/chatlog/pkg/api"
	"github.com/ssargent/chatlog/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the chatlog REST API server.

The server decodes records posted to /api/v1/decode, serves archived entries
and search results, and exposes Prometheus metrics on /metrics.

Examples:
  chatlog serve --port=8080 --api-key=mysecretkey
  CHATLOG_API_KEY=mysecretkey chatlog serve --data-dir ./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logger.Named("api")
		if cfg.APIKey == "" {
			log.Warn().Msg("no API key configured, /api/v1 is unauthenticated")
		}

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := api.NewServer(a, api.ServerConfig{
			Address: cfg.Address(),
			APIKey:  cfg.APIKey,
		}, log)
		return server.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key required in the X-API-Key header")
}
