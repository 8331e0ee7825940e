package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/auth"
	"github.com/driftfs/driftfs/pkg/config"
	metricsprom "github.com/driftfs/driftfs/pkg/metrics/prometheus"
	"github.com/driftfs/driftfs/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DriftFS server",
	Long: `Start the DriftFS server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/driftfs/config.yaml. A missing file
means defaults apply.

Examples:
  # Start with defaults
  driftfs start

  # Start with custom config file
  driftfs start --config /etc/driftfs/config.yaml

  # Override config with environment variables
  DRIFTFS_LOGGING_LEVEL=DEBUG driftfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("Configuration loaded", "source", configSource())
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// auth.Load logs the outcome, including first-run seeding.
	creds, err := auth.Load(cfg.Server.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	srv := server.New(server.Config{
		BindAddress:     cfg.Server.BindAddress,
		Port:            cfg.Server.Port,
		MaxConnections:  cfg.Server.MaxConnections,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		StorageRoot:     cfg.Server.StorageRoot,
	}, creds)

	// Cancelled on SIGINT/SIGTERM; the server shuts down gracefully.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		srv.SetMetrics(metricsprom.NewRecorder(reg))

		metricsSrv := metricsprom.NewServer(cfg.Metrics.Port, reg)
		go func() {
			if err := metricsSrv.Serve(ctx); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"port", cfg.Server.Port, "storage_root", cfg.Server.StorageRoot)

	select {
	case <-ctx.Done():
		stop()
		logger.Info("Shutdown signal received, initiating graceful shutdown")

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// configSource describes where the configuration came from.
func configSource() string {
	if cfgFile != "" {
		return cfgFile
	}
	if config.DefaultConfigExists() {
		return config.DefaultConfigPath()
	}
	return "defaults"
}
