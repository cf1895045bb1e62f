package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"datamart/internal/api"
	"datamart/internal/ledger"
)

const waitPollInterval = 250 * time.Millisecond

// transactionCall matches the per-transaction methods of api.Client used as
// method expressions.
type transactionCall func(client *api.Client, ctx context.Context, kind string, id int64) (*api.Transaction, error)

func newTransactionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newOpenCommand(ctx),
		newTransactionCommand(ctx, "show", "Show fulfillment progress of a transaction", (*api.Client).Show),
		newTransactionCommand(ctx, "cancel", "Cancel a running transaction", (*api.Client).Cancel),
		newTransactionCommand(ctx, "retry", "Retry a failed or canceled transaction", (*api.Client).Retry),
	}
}

func newTransactionCommand(ctx *commandContext, use, short string, call transactionCall) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   use + " <item|order> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := runTransactionCall(cmd, ctx, args, call)
			if err != nil {
				return err
			}
			return printTransaction(cmd, *tx, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the transaction as JSON")
	return cmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var wait bool
	cmd := &cobra.Command{
		Use:   "open <item|order> <id>",
		Short: "Open a transaction, starting its fulfillment if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := runTransactionCall(cmd, ctx, args, (*api.Client).Open)
			if err != nil {
				return err
			}
			if wait {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				if tx, err = waitForTransaction(cmd.Context(), client, tx.Kind, tx.ID); err != nil {
					return err
				}
			}
			return printTransaction(cmd, *tx, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the transaction as JSON")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the transaction stops running")
	return cmd
}

func runTransactionCall(cmd *cobra.Command, ctx *commandContext, args []string, call transactionCall) (*api.Transaction, error) {
	kind, id, err := parseTransactionArgs(args)
	if err != nil {
		return nil, err
	}
	client, err := ctx.client()
	if err != nil {
		return nil, err
	}
	return call(client, cmd.Context(), string(kind), id)
}

func waitForTransaction(ctx context.Context, client *api.Client, kind string, id int64) (*api.Transaction, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		tx, err := client.Show(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if tx.Status != string(ledger.StatusRunning) {
			return tx, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printTransaction(cmd *cobra.Command, tx api.Transaction, jsonOut bool) error {
	if jsonOut {
		return writeJSON(cmd, tx)
	}
	renderTransaction(cmd.OutOrStdout(), tx)
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List transactions known to the daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			txs, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.TransactionListResponse{Transactions: txs})
			}
			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions")
				return nil
			}
			fmt.Fprintln(out, renderTransactionTable(txs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output transactions as JSON")
	return cmd
}
