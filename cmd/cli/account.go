package main

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/rpcsurface"
	"github.com/shardflow/flownode/pkg/utils"
)

func getBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getBalance",
		Short: "report an address's spendable and locked balance",
		Run: func(cmd *cobra.Command, args []string) {
			addrStr, _ := cmd.Flags().GetString("address")
			if addrStr == "" {
				bail(errors.New("--address is required"))
			}
			addr, err := primitives.DecodeAddress(addrStr)
			bail(err)

			bal, err := surface.GetBalance(addr)
			bail(err)
			printResult(bal)
		},
	}
	cmd.Flags().String("address", "", "address to query [required]")
	return cmd
}

// destinationFlag parses one --to "address:amount" pair.
func destinationFlag(s string) (rpcsurface.Destination, error) {
	addrStr, amtStr, ok := strings.Cut(s, ":")
	if !ok {
		return rpcsurface.Destination{}, errors.New(`destination must be "address:amount"`)
	}
	addr, err := primitives.DecodeAddress(addrStr)
	if err != nil {
		return rpcsurface.Destination{}, err
	}
	amt, err := strconv.ParseUint(amtStr, 10, 64)
	if err != nil {
		return rpcsurface.Destination{}, err
	}
	return rpcsurface.Destination{Address: addr, Amount: primitives.U256FromUint64(amt)}, nil
}

func buildTransferTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buildTransferTx",
		Short: "build an unsigned transfer transaction",
		Run: func(cmd *cobra.Command, args []string) {
			pubKeyHex, _ := cmd.Flags().GetString("pubkey")
			destStrs, _ := cmd.Flags().GetStringArray("to")
			gasAmount, _ := cmd.Flags().GetUint64("gasAmount")
			gasPrice, _ := cmd.Flags().GetUint64("gasPrice")

			if pubKeyHex == "" || len(destStrs) == 0 {
				bail(errors.New("--pubkey and at least one --to are required"))
			}
			pubKey, err := hex.DecodeString(pubKeyHex)
			bail(err)

			destinations := make([]rpcsurface.Destination, 0, len(destStrs))
			for _, s := range destStrs {
				dest, err := destinationFlag(s)
				bail(err)
				destinations = append(destinations, dest)
			}

			unsigned, err := surface.BuildTransferTx(pubKey, destinations, rpcsurface.GasOptions{
				GasAmount: gasAmount,
				GasPrice:  primitives.U256FromUint64(gasPrice),
			})
			bail(err)
			encoded := chain.Transaction{Unsigned: unsigned}.Encode()
			printResult(struct {
				Unsigned chain.TxUnsigned
				Encoded  string
			}{Unsigned: unsigned, Encoded: hex.EncodeToString(encoded)})
		},
	}
	cmd.Flags().String("pubkey", "", "sender public key (hex) [required]")
	cmd.Flags().StringArray("to", nil, `destination "address:amount", repeatable [required]`)
	cmd.Flags().Uint64("gasAmount", 20_000, "gas amount to spend")
	cmd.Flags().Uint64("gasPrice", 1, "gas price per unit")
	return cmd
}

func submitTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submitTx",
		Short: "attach signatures to a transaction and submit it to the mempool",
		Run: func(cmd *cobra.Command, args []string) {
			txHex, _ := cmd.Flags().GetString("unsigned")
			sigHexes, _ := cmd.Flags().GetStringArray("sig")
			if txHex == "" {
				bail(errors.New("--unsigned is required"))
			}

			unsigned, err := decodeTxUnsigned(txHex)
			bail(err)
			signatures, err := decodeSignatures(sigHexes)
			bail(err)

			ctx, cancel := withTimeout()
			defer cancel()
			result, err := surface.SubmitTx(ctx, unsigned, signatures)
			bail(err)
			printResult(result)
		},
	}
	cmd.Flags().String("unsigned", "", "canonically-encoded unsigned transaction (hex, from buildTransferTx) [required]")
	cmd.Flags().StringArray("sig", nil, "64-byte input signature (hex), repeatable")
	return cmd
}

func getTxStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getTxStatus",
		Short: "report whether a transaction is pooled, confirmed, or unknown",
		Run: func(cmd *cobra.Command, args []string) {
			txIDHex, _ := cmd.Flags().GetString("txId")
			from, _ := cmd.Flags().GetUint32("from")
			to, _ := cmd.Flags().GetUint32("to")
			if txIDHex == "" {
				bail(errors.New("--txId is required"))
			}
			txID, err := primitives.HashFromHex(txIDHex)
			bail(err)
			printResult(surface.GetTxStatus(txID, from, to))
		},
	}
	cmd.Flags().String("txId", "", "transaction id (hex) [required]")
	cmd.Flags().Uint32("from", 0, "cross-shard 'from' chain group")
	cmd.Flags().Uint32("to", 0, "cross-shard 'to' chain group")
	return cmd
}

func decodeSignatures(hexes []string) ([][64]byte, error) {
	out := make([][64]byte, 0, len(hexes))
	for _, h := range hexes {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		if len(b) != 64 {
			return nil, errors.New("signature must be 64 bytes")
		}
		var sig [64]byte
		copy(sig[:], b)
		out = append(out, sig)
	}
	return out, nil
}

// decodeTxUnsigned accepts the hex encoding buildTransferTx prints: a full
// Transaction.Encode() with every signed-only field left zero, decoded back
// via chain.DecodeTransaction since TxUnsigned has no standalone decoder.
func decodeTxUnsigned(hexStr string) (chain.TxUnsigned, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return chain.TxUnsigned{}, utils.Wrap(err, "decoding --unsigned hex")
	}
	tx, err := chain.DecodeTransaction(raw)
	if err != nil {
		return chain.TxUnsigned{}, utils.Wrap(err, "parsing --unsigned transaction")
	}
	return tx.Unsigned, nil
}
