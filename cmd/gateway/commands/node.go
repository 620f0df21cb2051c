package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockforge-labs/devnet-gateway/devnode"
	"github.com/blockforge-labs/devnet-gateway/telemetry"
)

// NodeCmd represents the node command
var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the supervised dev-node",
	Long: `Run the local dev-node with snapshot persistence. A node started with no
snapshot file runs fresh and dumps state continuously; a node started with
one loads it first, so deployed contracts and balances survive restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return nodeCommand()
	},
}

func nodeCommand() error {
	log := telemetry.NewLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup, err := devnode.NewSupervisor(devnode.Options{
		Binary:       cfg.DevNode.Binary,
		Host:         cfg.DevNode.Host,
		Port:         cfg.DevNode.Port,
		StateFile:    cfg.DevNode.StateFile,
		DumpInterval: cfg.DevNode.DumpInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize dev-node supervisor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sup.Run(ctx)
}
