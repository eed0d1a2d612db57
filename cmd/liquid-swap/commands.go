package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/config"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/ArkLabsHQ/liquid-swap/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const redeemTimeout = time.Minute

// scriptFlags are shared by the commands operating on a single swap script.
type scriptFlags struct {
	swapType     string
	redeemScript string
	blindingKey  string
}

func (f *scriptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.swapType, "type", "reverse", "swap type, submarine or reverse")
	cmd.Flags().StringVar(&f.redeemScript, "script", "", "hex encoded redeem script")
	cmd.Flags().StringVar(&f.blindingKey, "blinding-key", "", "hex encoded blinding private key of the swap output")
	// nolint:all
	cmd.MarkFlagRequired("script")
	// nolint:all
	cmd.MarkFlagRequired("blinding-key")
}

func (f *scriptFlags) parse() (*swapscript.SwapScript, error) {
	swapType, err := swapscript.ParseSwapType(f.swapType)
	if err != nil {
		return nil, err
	}
	blindingKey, err := utils.ParseBlindingKey(f.blindingKey)
	if err != nil {
		return nil, err
	}
	return swapscript.DecodeString(f.redeemScript, swapType, blindingKey)
}

func decodeCmd() *cobra.Command {
	var flags scriptFlags

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a swap redeem script and print its details",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			script, err := flags.parse()
			if err != nil {
				return err
			}
			params, err := cfg.Chain().Params()
			if err != nil {
				return err
			}
			addr, err := script.Address(params)
			if err != nil {
				return err
			}

			return printJSON(map[string]any{
				"type":           script.Type.String(),
				"hashlock":       script.HashlockHex(),
				"receiverPubkey": hex.EncodeToString(script.ReceiverPubkey.SerializeCompressed()),
				"senderPubkey":   hex.EncodeToString(script.SenderPubkey.SerializeCompressed()),
				"timelock":       script.Timelock,
				"address":        addr,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func claimCmd() *cobra.Command {
	var (
		flags       scriptFlags
		destination string
		preimage    string
		fee         uint64
	)

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the swap output with the preimage and sweep it to destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := utils.ParsePreimage(preimage)
			if err != nil {
				return err
			}
			return redeem(cmd.Context(), &flags, swaptx.Claim, destination, fee, parsed[:])
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&destination, "destination", "", "confidential address receiving the funds")
	cmd.Flags().StringVar(&preimage, "preimage", "", "hex encoded swap preimage")
	cmd.Flags().Uint64Var(&fee, "fee", 0, "network fee in sats, defaults to the configured one")
	// nolint:all
	cmd.MarkFlagRequired("destination")
	// nolint:all
	cmd.MarkFlagRequired("preimage")
	return cmd
}

func refundCmd() *cobra.Command {
	var (
		flags       scriptFlags
		destination string
		fee         uint64
	)

	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund the swap output to destination once the timelock expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return redeem(cmd.Context(), &flags, swaptx.Refund, destination, fee, nil)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&destination, "destination", "", "confidential address receiving the funds")
	cmd.Flags().Uint64Var(&fee, "fee", 0, "network fee in sats, defaults to the configured one")
	// nolint:all
	cmd.MarkFlagRequired("destination")
	return cmd
}

func redeem(
	ctx context.Context, flags *scriptFlags, kind swaptx.Kind,
	destination string, fee uint64, preimage []byte,
) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	key := cfg.SigningKeyService()
	if key == nil {
		return fmt.Errorf("missing signing key, set %s or %s", config.SigningKey, config.SigningKeyFile)
	}
	script, err := flags.parse()
	if err != nil {
		return err
	}
	if fee == 0 {
		fee = cfg.DefaultFee
	}

	var builder *swaptx.SwapTx
	if kind == swaptx.Claim {
		builder, err = swaptx.NewClaim(script, destination, fee, cfg.Chain())
	} else {
		builder, err = swaptx.NewRefund(script, destination, fee, cfg.Chain())
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redeemTimeout)
	defer cancel()

	ledger := cfg.LedgerService()
	tx, err := builder.Drain(ctx, ledger, key, preimage)
	if err != nil {
		return err
	}
	txid, err := builder.Broadcast(ctx, ledger, tx)
	if err != nil {
		return err
	}
	log.Debugf("%s of %s broadcasted", kind, script.HashlockHex())

	return printJSON(map[string]string{"txid": txid})
}

func printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(buf))
	return nil
}
