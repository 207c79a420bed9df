package main

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var writeClipboard = clipboard.WriteAll

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shieldctl",
		Short:         "Manage a custodial ShieldFi wallet session and its tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}

	root.AddCommand(
		newConnectCmd(),
		newDisconnectCmd(),
		newRefreshCmd(),
		newStatusCmd(),
		newTransactionsCmd(),
		newCopyAddressCmd(),
		newTokenCmd(),
	)
	return root
}

// execute runs root and releases the backend opened for the command, whether or not it failed.
func execute(root *cobra.Command) error {
	cmd, err := root.ExecuteC()
	if cmd != nil && cmd.Context() != nil {
		if a := appFrom(cmd); a != nil {
			a.res.Close(a.logger)
		}
	}
	return err
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <username>",
		Short: "Resolve or create the wallet bound to username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.store.Connect(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printStatus(cmd, a.store)
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if err := a.store.Disconnect(cmd.Context()); err != nil {
				return err
			}
			return printStatus(cmd, a.store)
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch balance and holdings of the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.store.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printStatus(cmd, a.store)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd, appFrom(cmd).store)
		},
	}
}

func newTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List transactions of the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := appFrom(cmd).store.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, txs)
		},
	}
}

func newCopyAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy-address",
		Short: "Copy the connected wallet address to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, current := appFrom(cmd).store.Snapshot()
			if current == nil {
				return errors.New("no connected wallet")
			}
			if err := writeClipboard(current.Address); err != nil {
				return err
			}
			cmd.Printf("copied %s\n", current.Address)
			return nil
		},
	}
}
