package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockforge-labs/devnet-gateway/config"
	"github.com/blockforge-labs/devnet-gateway/telemetry"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the gateway",
	Long: `Initialize the gateway configuration. This command creates the
~/.devnet-gateway directory with its data directories and writes config.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd)
	},
}

func init() {
	InitCmd.Flags().String("rpc-url", "http://127.0.0.1:8545", "Ethereum RPC URL of the dev-node")
	InitCmd.Flags().String("api-port", ":3030", "API server port")
	InitCmd.Flags().String("otlp-endpoint", "", "OTLP collector endpoint (empty disables traces)")
	InitCmd.Flags().String("devnode-binary", "anvil", "Dev-node executable")
	InitCmd.Flags().String("state-file", "", "Dev-node snapshot file (default <gateway dir>/data/state/devnet-state.json)")
}

func initCommand(cmd *cobra.Command) error {
	rpcURL, _ := cmd.Flags().GetString("rpc-url")
	apiPort, _ := cmd.Flags().GetString("api-port")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	devnodeBinary, _ := cmd.Flags().GetString("devnode-binary")
	stateFile, _ := cmd.Flags().GetString("state-file")

	log := telemetry.NewLogger()

	gatewayDir, err := config.DefaultDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(gatewayDir, 0o755); err != nil {
		return fmt.Errorf("failed to create gateway directory: %w", err)
	}

	dataDir := filepath.Join(gatewayDir, "data")
	dirs := []string{
		filepath.Join(dataDir, "journal_db"),
		filepath.Join(dataDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.General.EthereumRPCURL = rpcURL
	cfg.General.APIPort = apiPort
	cfg.Telemetry.OTLPEndpoint = otlpEndpoint
	cfg.Journal.DBPath = filepath.Join(dataDir, "journal_db")
	cfg.DevNode.Binary = devnodeBinary
	if stateFile == "" {
		stateFile = filepath.Join(dataDir, "state", "devnet-state.json")
	}
	cfg.DevNode.StateFile = stateFile

	configPath := filepath.Join(gatewayDir, "config.toml")
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	log.Infof("Created config file at: %s", configPath)

	fmt.Println("\n=== Configuration Summary ===")
	fmt.Printf("Ethereum RPC URL: %s\n", cfg.General.EthereumRPCURL)
	fmt.Printf("API Port: %s\n", cfg.General.APIPort)
	fmt.Printf("OTLP Endpoint: %s\n", cfg.Telemetry.OTLPEndpoint)
	fmt.Printf("Journal DB: %s\n", cfg.Journal.DBPath)
	fmt.Printf("Dev-node State File: %s\n", cfg.DevNode.StateFile)
	fmt.Printf("Config File: %s\n", configPath)

	log.Info("Initialization completed successfully!")
	log.Info("Start the dev-node with: devnet-gateway node")
	log.Info("Start the API with: devnet-gateway start")

	return nil
}
