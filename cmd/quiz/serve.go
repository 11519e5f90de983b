package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dylan-euc/client-side-quiz/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the flows and server-side sessions as a JSON API, with Prometheus
metrics on /metrics and reload events on /events when --watch is set.
Settings come from --config and QUIZ_* environment variables; flags win.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("watch") {
			cfg.Watch, _ = cmd.Flags().GetBool("watch")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Driver, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("dsn") {
			cfg.Store.DSN, _ = cmd.Flags().GetString("dsn")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := cli.NewLogger(cfg)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := cli.Serve(ctx, cfg, logger); err != nil {
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload flows when files change")
	serveCmd.Flags().String("store", "memory", "Session store: memory, file, redis, sqlite or postgres")
	serveCmd.Flags().String("dsn", "", "Store directory, address or data source name")
}
