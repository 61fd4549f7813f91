package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rewardvault/config"
	"rewardvault/core/callctx"
	"rewardvault/core/types"
	"rewardvault/crypto"
)

func newInitConfigCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration to --config",
		// Loading would create the file before this command could inspect it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", a.configPath)
			}
			if err := config.Write(a.configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newKeygenCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the operator key and store it in an encrypted keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := out
			if path == "" {
				path = a.cfg.OperatorKeystore
			}
			if path == "" {
				return fmt.Errorf("no keystore path configured")
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("keystore %s already exists", path)
			}
			pass, err := a.passphrase.Confirm()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveToKeystore(path, key, pass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.Address().String())
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "keystore path (defaults to the configured operator keystore)")
	return cmd
}

func newFundCommand(a *app) *cobra.Command {
	var to, amount, token string
	var nonce uint64
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an account on the local settlement ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipient, err := resolveAccount(a, to)
			if err != nil {
				return err
			}
			value, err := config.ParseAmount(amount)
			if err != nil {
				return err
			}
			asset := types.AssetRef{TokenID: token, Nonce: nonce}
			if asset.TokenID == "" {
				asset = types.NativeAsset(a.cfg.Donation.NativeDenom)
			}
			return a.withNode(cmd, false, func(ctx context.Context, n *node) error {
				if err := n.ledger.Mint(ctx, recipient, asset, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credited %s %s to %s\n", value, asset.String(), crypto.FormatAddress(recipient))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address, or \"operator\"")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in base units")
	cmd.Flags().StringVar(&token, "token", "", "token identifier (defaults to the native denomination)")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "batch nonce for semi-fungible units")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newIssueCommand(a *app) *cobra.Command {
	var name, ticker, fee string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Pay the registration fee and register the reward asset class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fee == "" {
				fee = a.cfg.Registry.IssueCost
			}
			value, err := config.ParseAmount(fee)
			if err != nil {
				return err
			}
			return a.withNode(cmd, true, func(ctx context.Context, n *node) error {
				requestID, err := n.engine.IssueAssetClass(n.asOperator(ctx), value, name, ticker)
				if err != nil {
					return err
				}
				if err := n.settle(ctx); err != nil {
					return err
				}
				view, err := n.engine.Views(ctx)
				if err != nil {
					return err
				}
				if view.TokenID == "" {
					return fmt.Errorf("registration %s was rejected; the fee was returned", requestID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (request %s)\n", view.TokenID, requestID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the asset class")
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker of the asset class")
	cmd.Flags().StringVar(&fee, "fee", "", "registration fee in base units (defaults to the registry issue cost)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}

func newGrantRolesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grant-roles",
		Short: "Grant the custody account the create and add-quantity roles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd, true, func(ctx context.Context, n *node) error {
				if err := n.engine.GrantLocalPermissions(n.asOperator(ctx)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "local roles requested")
				return nil
			})
		},
	}
}

func newMintCommand(a *app) *cobra.Command {
	var name, uri string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create the reward batch and open donations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd, true, func(ctx context.Context, n *node) error {
				nonce, err := n.engine.MintRewardBatch(n.asOperator(ctx), name, uri)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "minted batch nonce %d\n", nonce)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the batch")
	cmd.Flags().StringVar(&uri, "uri", "", "resource URI of the batch")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("uri")
	return cmd
}

func newDonateCommand(a *app) *cobra.Command {
	var from, amount, token string
	cmd := &cobra.Command{
		Use:   "donate",
		Short: "Donate from an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			donor, err := resolveAccount(a, from)
			if err != nil {
				return err
			}
			value, err := config.ParseAmount(amount)
			if err != nil {
				return err
			}
			payment := types.Payment{Asset: types.AssetRef{TokenID: token}, Amount: value}
			return a.withNode(cmd, from == "operator", func(ctx context.Context, n *node) error {
				receipt, err := n.engine.Donate(callctx.WithCaller(ctx, donor), payment)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{
					"donor":          crypto.FormatAddress(receipt.Donor),
					"amount":         receipt.Amount.String(),
					"granted":        receipt.Granted,
					"unit":           receipt.Unit.String(),
					"unitsRemaining": receipt.UnitsRemaining,
				})
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "donor address, or \"operator\"")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in base units")
	cmd.Flags().StringVar(&token, "token", "", "payment token (defaults to the native denomination)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newClaimCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Withdraw the custody balance to the operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd, true, func(ctx context.Context, n *node) error {
				claimed, err := n.engine.Claim(n.asOperator(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "claimed %s\n", claimed)
				return nil
			})
		},
	}
}

func newClaimUnitsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "claim-units",
		Short: "Withdraw every remaining reward unit to the operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd, true, func(ctx context.Context, n *node) error {
				units, err := n.engine.ClaimLeftoverUnits(n.asOperator(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "claimed %d units\n", units)
				return nil
			})
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print funds raised, units granted and units remaining",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withNode(cmd, false, func(ctx context.Context, n *node) error {
				view, err := n.engine.Views(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"status":         view.Status,
					"amountRaised":   view.AmountRaised.String(),
					"nftBought":      view.UnitsGranted,
					"nftLeft":        view.UnitsRemaining,
					"tokenId":        view.TokenID,
					"pendingRequest": view.PendingRequest,
					"unitNonce":      view.UnitNonce,
					"custody":        crypto.FormatAddress(n.engine.Params().Custody),
					"provenanceHash": "",
				}
				if view.Batch != nil {
					out["provenanceHash"] = hex.EncodeToString(view.Batch.ProvenanceHash[:])
				}
				if view.TokenID != "" {
					token, err := n.registry.Token(ctx, view.TokenID)
					if err != nil {
						return err
					}
					out["tokenName"] = token.Name
					out["ticker"] = token.Ticker
					out["tokenOwner"] = crypto.FormatAddress(token.Owner)
				}
				return writeJSON(cmd, out)
			})
		},
	}
}

func newBalanceCommand(a *app) *cobra.Command {
	var address, token string
	var nonce uint64
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the settlement balance of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := resolveAccount(a, address)
			if err != nil {
				return err
			}
			asset := types.AssetRef{TokenID: token, Nonce: nonce}
			if asset.TokenID == "" {
				asset = types.NativeAsset(a.cfg.Donation.NativeDenom)
			}
			return a.withNode(cmd, false, func(ctx context.Context, n *node) error {
				bal, err := n.ledger.Balance(ctx, owner, asset)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), bal.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "account address, \"operator\" or \"custody\"")
	cmd.Flags().StringVar(&token, "token", "", "token identifier (defaults to the native denomination)")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "batch nonce for semi-fungible units")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

// resolveAccount accepts an address or one of the names "operator" and
// "custody".
func resolveAccount(a *app, value string) ([20]byte, error) {
	switch value {
	case "operator":
		key, err := a.operatorKey()
		if err != nil {
			return [20]byte{}, err
		}
		return key.Address().Bytes(), nil
	case "custody":
		params, err := donationParams(a.cfg)
		if err != nil {
			return [20]byte{}, err
		}
		return params.Custody, nil
	default:
		return crypto.ParseAddress(value)
	}
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
