package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blockforge-labs/devnet-gateway/cmd/gateway/commands"
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "devnet-gateway",
		Short: "HTTP gateway for a local Ethereum dev-node",
		Long: `An HTTP gateway in front of a local Ethereum dev-node. It serves health
and balance lookups over JSON-RPC, streams balance changes over WebSocket,
and can supervise the dev-node itself with snapshot-based state persistence.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.NodeCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
