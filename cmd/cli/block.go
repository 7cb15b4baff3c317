package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

func getBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getBlock",
		Short: "fetch a block by chain index and hash",
		Run: func(cmd *cobra.Command, args []string) {
			from, _ := cmd.Flags().GetUint32("from")
			to, _ := cmd.Flags().GetUint32("to")
			hashHex, _ := cmd.Flags().GetString("hash")
			if hashHex == "" {
				bail(errors.New("--hash is required"))
			}
			hash, err := primitives.HashFromHex(hashHex)
			bail(err)

			block, ok := surface.GetBlock(chain.ChainIndex{From: from, To: to}, hash)
			if !ok {
				bail(errors.New("block not found"))
			}
			printResult(block)
		},
	}
	cmd.Flags().Uint32("from", 0, "chain index 'from' group")
	cmd.Flags().Uint32("to", 0, "chain index 'to' group")
	cmd.Flags().String("hash", "", "block hash (hex) [required]")
	return cmd
}

func getChainInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getChainInfo",
		Short: "report a chain's current tip and height",
		Run: func(cmd *cobra.Command, args []string) {
			from, _ := cmd.Flags().GetUint32("from")
			to, _ := cmd.Flags().GetUint32("to")
			printResult(surface.GetChainInfo(from, to))
		},
	}
	cmd.Flags().Uint32("from", 0, "chain index 'from' group")
	cmd.Flags().Uint32("to", 0, "chain index 'to' group")
	return cmd
}
