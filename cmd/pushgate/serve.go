package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pushgate/internal/config"
	"pushgate/internal/delivery"
	"pushgate/internal/deploy"
	"pushgate/internal/security"
	"pushgate/internal/server"
	"pushgate/pkg/cmdutil"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var (
	configFile string
	logFile    string
	dbPath     string
	host       string
	port       int
	testMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook gateway",
	Long: `Start the HTTP server that receives GitHub webhook requests.

The server listens for push events and runs the configured deploy command,
one deployment at a time.`,
	RunE: runServe,
}

func init() {
	// Flags for serve command
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("PUSHGATE_CONFIG_FILE", ""), "Path to pushgate.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", config.DefaultLogFile, "Path to log file")
	serveCmd.Flags().StringVar(&dbPath, "db", config.DefaultLedgerPath, "Path to the delivery ledger database")
	serveCmd.Flags().StringVar(&host, "host", config.DefaultHost, "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("PUSHGATE_TEST_MODE") == "1", "Enable test mode (no rate limits, no delivery ledger)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Explicit flags win over the config file and environment
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("log") {
		cfg.Log.File = logFile
	}
	if cmd.Flags().Changed("db") {
		cfg.Ledger.Path = dbPath
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting pushgate", "version", version)
	logger.Info("Deploy command configured",
		"command", cmdutil.FormatCommand(cfg.Deploy.Argv),
		"dir", cfg.Deploy.Dir)

	switch {
	case !cfg.WebhookConfigured():
		logger.Warn("No webhook secret configured, every delivery will be rejected with 503")
		logger.Warn("Set webhook.secret in the config file or the PUSHGATE_WEBHOOK_SECRET environment variable")
	case security.IsWeakSecret(cfg.Webhook.Secret):
		logger.Warn("Webhook secret is weak, generate a stronger one with 'pushgate secret'")
	}

	// The config file carries the secret, so loose permissions leak it
	if cfg.Source != "" && cfg.WebhookConfigured() {
		if err := security.ValidateSecurePermissions(cfg.Source); err != nil {
			logger.Warn("Config file permissions are too open", "error", err)
		}
	}

	// Open the delivery ledger for replay protection
	var ledger *delivery.Ledger
	if !testMode {
		logger.Info("Opening delivery ledger", "db", cfg.Ledger.Path)
		ledger, err = delivery.NewLedger(cfg.Ledger.Path)
		if err != nil {
			logger.Error("Failed to open delivery ledger", "error", err)
			return fmt.Errorf("failed to open delivery ledger: %w", err)
		}
		defer ledger.Close()
	}

	invoker := deploy.NewInvoker(cfg.Deploy.Argv, cfg.Deploy.Dir, logger)
	srv := server.NewServer(cfg, ledger, invoker, logger, testMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", "error", err)
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	logger.Info("Stopped")
	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, security.PermLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper function for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
