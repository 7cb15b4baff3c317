// Command node runs a flownode process: it wires storage, state, the
// BlockFlow grid, and the core/actor set via internal/bootstrap, then runs
// the actor supervisor until terminated (spec section 6's node lifecycle).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shardflow/flownode/config"
	"github.com/shardflow/flownode/internal/bootstrap"
)

func main() {
	rootCmd := &cobra.Command{Use: "flownode"}
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(config.ExitConfigError)
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [config] [genesis]",
		Short: "start a flownode process",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := "config.yaml"
			genesisPath := "genesis.yaml"
			if len(args) > 0 {
				configPath = args[0]
			}
			if len(args) > 1 {
				genesisPath = args[1]
			}
			dataDir, _ := cmd.Flags().GetString("data")
			os.Exit(run(configPath, genesisPath, dataDir))
		},
	}
	cmd.Flags().String("data", "data", "directory for on-disk storage")
	return cmd
}

func run(configPath, genesisPath, dataDir string) int {
	log := logrus.NewEntry(logrus.StandardLogger())

	node, err := bootstrap.Open(configPath, genesisPath, dataDir, log)
	if err != nil {
		log.WithError(err).Error("bootstrapping node")
		return config.ExitConfigError
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"brokerId":  node.Config.Broker.BrokerID,
		"brokerNum": node.Config.Broker.BrokerNum,
		"bind":      node.Config.Network.BindAddress,
	}).Info("starting flownode")

	if err := node.Supervisor.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("actor supervisor exited with error")
		return config.ExitStateDivergence
	}
	return config.ExitNormal
}
