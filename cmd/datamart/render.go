package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"datamart/internal/api"
	"datamart/internal/fulfillment"
)

var titleCaser = cases.Title(language.English)

// phaseTitle renders a phase name for humans ("submit on-chain" becomes
// "Submit On-Chain").
func phaseTitle(name string) string {
	if strings.TrimSpace(name) == "" {
		return "-"
	}
	return titleCaser.String(name)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	tw.AppendHeader(row)
	return tw
}

// renderPhaseTable lays out one row per phase with a column per lane actor.
// The phase at the cursor is marked with an arrow.
func renderPhaseTable(phases []api.Phase, cursor int) string {
	headers := []string{"", "#", "Phase"}
	for slot := range fulfillment.SlotCount {
		headers = append(headers, titleCaser.String(fulfillment.SlotName(slot)))
	}
	tw := newTable(headers...)
	for i, phase := range phases {
		marker := ""
		if i == cursor {
			marker = ">"
		}
		row := table.Row{marker, i + 1, phaseTitle(phase.Name)}
		for slot := range fulfillment.SlotCount {
			status := fulfillment.LaneNotApplicable.String()
			if slot < len(phase.Lanes) {
				status = phase.Lanes[slot].Status
			}
			row = append(row, laneLabel(status))
		}
		tw.AppendRow(row)
	}
	configs := []table.ColumnConfig{{Number: 2, Align: text.AlignRight}}
	for slot := range fulfillment.SlotCount {
		configs = append(configs, table.ColumnConfig{Number: 4 + slot, Align: text.AlignCenter, AlignHeader: text.AlignCenter})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func laneLabel(status string) string {
	if status == fulfillment.LaneNotApplicable.String() {
		return "-"
	}
	return status
}

// renderTransactionTable summarizes transactions one per row.
func renderTransactionTable(txs []api.Transaction) string {
	tw := newTable("Kind", "ID", "Status", "Phase", "Progress", "Updated")
	for _, tx := range txs {
		tw.AppendRow(table.Row{
			tx.Kind,
			tx.ID,
			tx.Status,
			phaseTitle(currentPhase(tx)),
			fmt.Sprintf("%d%% (%d/%d)", tx.Percent, tx.Cursor, tx.PhaseCount),
			displayTime(tx.UpdatedAt),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

func currentPhase(tx api.Transaction) string {
	if tx.Cursor >= 0 && tx.Cursor < len(tx.Phases) {
		return tx.Phases[tx.Cursor].Name
	}
	return ""
}

func displayTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// renderTransaction prints a heading, the phase grid and failure detail.
func renderTransaction(w io.Writer, tx api.Transaction) {
	title := tx.Title
	if title == "" {
		title = tx.Kind
	}
	fmt.Fprintf(w, "%s #%d: %s, %s complete\n", title, tx.ID, tx.Status, strconv.Itoa(tx.Percent)+"%")
	fmt.Fprintln(w, renderPhaseTable(tx.Phases, tx.Cursor))
	if tx.Failure != nil {
		fmt.Fprintf(w, "Failed in %s (%s lane): %s\n", phaseTitle(tx.Failure.PhaseName), tx.Failure.Lane, tx.Failure.Message)
	} else if tx.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", tx.Error)
	}
}
