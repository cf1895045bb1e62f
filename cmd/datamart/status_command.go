package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"datamart/internal/api"
	"datamart/internal/ledger"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and ledger status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			status, err := client.Status(cmd.Context())
			if err != nil {
				if errors.Is(err, api.ErrDaemonUnreachable) {
					for _, line := range renderSectionHeader("Daemon", colorize) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not reachable at "+client.BaseURL(), colorize))
					fmt.Fprintln(out, "Start it with `datamart daemon`.")
					return nil
				}
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			for _, line := range renderStatusLines(status, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")
	return cmd
}

func renderStatusLines(status *api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "stopped", colorize))
	}
	lines = append(lines,
		renderStatusLine("API", statusInfo, status.APIBind, colorize),
		renderStatusLine("Ledger", statusInfo, status.LedgerPath, colorize),
		renderStatusLine("Lock", statusInfo, status.LockFilePath, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Tracker", colorize)...)
	tr := status.Tracker
	lines = append(lines, renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d loaded, %d active", tr.Sessions, tr.Active), colorize))
	lines = append(lines, renderStatusLine("Ledger", ledgerStatsKind(tr.LedgerStats), formatLedgerStats(tr.LedgerStats), colorize))
	if tr.Last != nil {
		lines = append(lines, renderTransactionLine("Last", tr.Last, colorize))
	}
	if tr.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, tr.LastError, colorize))
	}
	return lines
}

func formatLedgerStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "empty"
	}
	known := make(map[string]bool, len(stats))
	parts := make([]string, 0, len(stats))
	for _, status := range ledger.Statuses() {
		known[string(status)] = true
		if count := stats[string(status)]; count > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", status, count))
		}
	}
	var extra []string
	for key, count := range stats {
		if !known[key] && count > 0 {
			extra = append(extra, fmt.Sprintf("%s %d", key, count))
		}
	}
	sort.Strings(extra)
	parts = append(parts, extra...)
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, ", ")
}
