// Command flowcli is a one-shot query/submission tool over core/rpcsurface,
// wired the same way as cmd/node via internal/bootstrap.
//
// Layout (following cmd/cli/storage.go's layering in the teacher):
//  1. Globals & middleware (flag-driven wiring of a bootstrap.Node and the
//     core/rpcsurface.Surface it backs).
//  2. Controllers — one per sub-command, thin and validated.
//  3. CLI definitions — commands + flags.
//
// Unlike cmd/node, this process does not run forever: there is no RPC/IPC
// transport connecting a flowcli invocation to an already-running flownode
// process (see DESIGN.md), so each invocation opens its own bootstrap.Node,
// runs its actor supervisor only long enough to drain the one command's
// work, then tears everything down.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/index"
	"github.com/shardflow/flownode/core/rpcsurface"
	"github.com/shardflow/flownode/internal/bootstrap"
	"github.com/shardflow/flownode/pkg/utils"
)

// ---------------------------------------------------------------------------
// Globals & middleware
// ---------------------------------------------------------------------------

var (
	cliLog  = logrus.NewEntry(logrus.StandardLogger())
	surface *rpcsurface.Surface

	cliFlags struct {
		configPath  string
		genesisPath string
		dataDir     string
	}

	// stopNode tears down the supervisor goroutine and on-disk storage
	// opened by initSurface. Set during PersistentPreRun, called during
	// PersistentPostRun.
	stopNode func()
)

// resolvePathFlag lets each path flag fall back to an environment variable
// (loaded from a .env file if present) when left at its zero value, the
// same env-then-flag precedence cmd/cli/storage.go's initStorageMiddleware
// uses.
func resolvePathFlag(cmd *cobra.Command, name, envKey string, target *string) {
	if v, _ := cmd.Flags().GetString(name); v != "" && cmd.Flags().Changed(name) {
		*target = v
		return
	}
	*target = utils.EnvOrDefault(envKey, *target)
}

func initSurface(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()
	resolvePathFlag(cmd, "config", "FLOWNODE_CONFIG", &cliFlags.configPath)
	resolvePathFlag(cmd, "genesis", "FLOWNODE_GENESIS", &cliFlags.genesisPath)
	resolvePathFlag(cmd, "data", "FLOWNODE_DATA", &cliFlags.dataDir)

	node, err := bootstrap.Open(cliFlags.configPath, cliFlags.genesisPath, cliFlags.dataDir, cliLog)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	idx := index.New()
	unsubscribe := subscribeIndex(node, idx)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := node.Supervisor.Run(ctx); err != nil && ctx.Err() == nil {
			cliLog.WithError(err).Warn("actor supervisor exited with error")
		}
	}()

	clique := rpcsurface.CliqueInfo{
		BrokerID:   node.Config.Broker.BrokerID,
		BrokerNum:  node.Config.Broker.BrokerNum,
		GroupCount: node.Genesis.GroupCount,
	}
	surface = rpcsurface.New(node.BlockFlow, node.Mempool, node.Acceptor, idx, idx, clique, cliLog)

	stopNode = func() {
		unsubscribe()
		cancel()
		<-done
		if err := node.Close(); err != nil {
			cliLog.WithError(err).Warn("closing storage")
		}
	}
}

func teardownSurface(cmd *cobra.Command, args []string) {
	if stopNode != nil {
		stopNode()
	}
}

// subscribeIndex feeds every newly-applied block into idx for the lifetime
// of the command, the same way core/actor.Supervisor wires
// BlockAcceptor.Subscribe to Mempool.Remove internally.
func subscribeIndex(node *bootstrap.Node, idx *index.UTXOIndex) func() {
	blocks, unsubscribe := node.Acceptor.Subscribe(32)
	go func() {
		for block := range blocks {
			chainIdx := chain.ChainIndexOf(block.Hash(), node.Genesis.GroupCount)
			idx.Apply(chainIdx, block)
		}
	}()
	return unsubscribe
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func bail(err error) {
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}

func printResult(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	bail(err)
	fmt.Println(string(b))
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func main() {
	rootCmd := &cobra.Command{
		Use:               "flowcli",
		PersistentPreRun:  initSurface,
		PersistentPostRun: teardownSurface,
	}
	rootCmd.PersistentFlags().StringVar(&cliFlags.configPath, "config", "config.yaml", "path to node configuration")
	rootCmd.PersistentFlags().StringVar(&cliFlags.genesisPath, "genesis", "genesis.yaml", "path to genesis configuration")
	rootCmd.PersistentFlags().StringVar(&cliFlags.dataDir, "data", "data", "directory for on-disk storage")

	rootCmd.AddCommand(
		getBlockCmd(),
		getChainInfoCmd(),
		getBalanceCmd(),
		buildTransferTxCmd(),
		submitTxCmd(),
		getTxStatusCmd(),
		getSelfCliqueCmd(),
		getMisbehaviorsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
