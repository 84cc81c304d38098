package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/api"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scheduler"
)

var (
	serveAddr string
	servePort int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes scanning, topology layout, scheduling, the websocket
event stream, and Prometheus metrics over HTTP. The server runs until
interrupted.`,
	Example: `  netrecon serve
  netrecon serve --listen 0.0.0.0 --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "Listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.API.ListenAddr = serveAddr
	}
	if servePort != 0 {
		cfg.API.Port = servePort
	}
	if !cfg.IsAPIEnabled() {
		return fmt.Errorf("api server is disabled in configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	orchestrator := scanning.New(cfg, bus)

	sched := scheduler.New(orchestrator)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.New(cfg, orchestrator, sched, bus)

	logging.Info("netrecon API listening", "address", server.Address())
	return server.Start(ctx)
}
