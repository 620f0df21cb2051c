package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockforge-labs/devnet-gateway/api"
	"github.com/blockforge-labs/devnet-gateway/config"
	"github.com/blockforge-labs/devnet-gateway/eth"
	"github.com/blockforge-labs/devnet-gateway/journal"
	"github.com/blockforge-labs/devnet-gateway/stream"
	"github.com/blockforge-labs/devnet-gateway/telemetry"
)

const shutdownTimeout = 10 * time.Second

// StartCmd represents the start command
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway API server",
	Long: `Start the gateway with the configuration from ~/.devnet-gateway/config.toml.
Without a config file the defaults apply, overridden by ETHEREUM_RPC_URL,
OTEL_EXPORTER_OTLP_ENDPOINT and GATEWAY_API_PORT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCommand()
	},
}

// loadConfig reads the config file when present and falls back to
// environment-driven defaults otherwise.
func loadConfig() (config.Config, error) {
	gatewayDir, err := config.DefaultDir()
	if err != nil {
		return config.Config{}, err
	}
	configPath := filepath.Join(gatewayDir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.EnvConfig(), nil
	}
	return config.LoadConfig(configPath)
}

func startCommand() error {
	log := telemetry.NewLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Trace pipeline to the OTLP collector
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		log.Infof("Exporting traces to %s", cfg.Telemetry.OTLPEndpoint)
	}

	// Balance journal
	j, err := journal.Open(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	// Dev-node client
	client, err := eth.NewClient(cfg.General.EthereumRPCURL)
	if err != nil {
		return fmt.Errorf("failed to initialize RPC client: %w", err)
	}
	defer client.Close()
	log.Infof("Using dev-node RPC at %s", cfg.General.EthereumRPCURL)

	// Balance stream
	manager := stream.NewManager(eth.ValidAddress, log)
	go manager.Run()

	interval, err := time.ParseDuration(cfg.General.WatchInterval)
	if err != nil || interval <= 0 {
		log.Warnf("Invalid watch interval %q, using 2s", cfg.General.WatchInterval)
		interval = 2 * time.Second
	}
	watcher := stream.NewWatcher(client, j, manager, interval, log)
	go watcher.Run(ctx)

	// API server
	server := api.NewServer(client, j, manager, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.General.APIPort)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error in API server shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Errorf("Error in trace pipeline shutdown: %v", err)
	}

	log.Info("Stopped")
	return nil
}
