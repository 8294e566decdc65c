package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spo-preflight/internal/api"
	"spo-preflight/internal/config"
	"spo-preflight/internal/logger"
	"spo-preflight/internal/runner"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		reportDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and web UI",
		Long: `Serve starts an HTTP server that runs scans as background jobs.

Endpoints:
  POST   /api/scans              start a scan ({"path": "...", "config": {...}})
  GET    /api/scans              list scans
  GET    /api/scans/{id}         scan status and progress
  DELETE /api/scans/{id}         cancel a running scan
  GET    /api/scans/{id}/report  download the CSV report
  GET    /api/scans/{id}/ws      live progress over a websocket
  GET    /api/history            recorded runs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return &ExitError{Code: runner.ExitConfigError, Err: err}
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("report-dir") {
				cfg.Server.ReportDir = reportDir
			}
			if err := cfg.Validate(); err != nil {
				return &ExitError{Code: runner.ExitConfigError, Err: err}
			}

			log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, log)
		},
	}

	defaults := config.DefaultConfig()
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&addr, "addr", defaults.Server.Addr, "Listen address")
	cmd.Flags().StringVar(&reportDir, "report-dir", defaults.Server.ReportDir, "Directory for reports of API scans")

	return cmd
}

// Serve runs the API server until ctx is cancelled, then cancels running
// scans and shuts down gracefully
func Serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	h := api.NewHandler(cfg, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.LogInfo(fmt.Sprintf("Server starting on %s", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.LogInfo("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.Shutdown(shutdownCtx); err != nil {
		log.LogWarn(fmt.Sprintf("Scans still running at shutdown: %v", err))
	}
	return srv.Shutdown(shutdownCtx)
}
