package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shieldfi/shieldfi/internal/metal"
)

func newTokenCmd() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Create, inspect and distribute tokens",
	}
	token.AddCommand(newTokenCreateCmd(), newTokenGetCmd(), newTokenHoldersCmd(), newTokenDistributeCmd())
	return token
}

func newTokenCreateCmd() *cobra.Command {
	var (
		name     string
		symbol   string
		decimals int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fungible token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := metal.CreateTokenInput{Name: name, Symbol: symbol}
			if cmd.Flags().Changed("decimals") {
				input.Decimals = &decimals
			}
			asset, err := appFrom(cmd).tokens.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd, asset)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "token name")
	cmd.Flags().StringVar(&symbol, "symbol", "", "token symbol")
	cmd.Flags().IntVar(&decimals, "decimals", metal.DefaultDecimals, "token decimals")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func newTokenGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <token-address>",
		Short: "Show token details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := appFrom(cmd).tokens.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, asset)
		},
	}
}

func newTokenHoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holders <token-address>",
		Short: "List token holders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holders, err := appFrom(cmd).tokens.Holders(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, holders)
		},
	}
}

func newTokenDistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <token-address> <recipient> <amount>",
		Short: "Send tokens once; a failed distribution is never resent",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := appFrom(cmd).tokens.Distribute(cmd.Context(), metal.DistributionRequest{
				TokenAddress:     args[0],
				RecipientAddress: args[1],
				Amount:           args[2],
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("distribution was not accepted")
			}
			return nil
		},
	}
}
