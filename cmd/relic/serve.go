package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relic/internal/finder"
	"relic/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relic HTTP daemon",
	Long: `Start the HTTP server. Scans are submitted with POST /api/v1/scans and
observed via polling or the WebSocket status stream at /ws/scans/{id}. The
idle working-copy sweeper and stale-job cleanup run in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().String("bind", "", "Address to bind (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.Server.Bind = bind
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc, err := finder.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	srv, err := server.New(cfg, svc, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.StartBackground(ctx)
	return srv.Run(ctx)
}
