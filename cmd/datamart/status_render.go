package main

import (
	"fmt"
	"strings"

	"datamart/internal/api"
	"datamart/internal/ledger"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct{ tag, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset     = "\x1b[0m"
	statusColumns = 14
)

// ledgerStatusKind maps a record status onto a status line level.
func ledgerStatusKind(status ledger.Status) statusKind {
	switch status {
	case ledger.StatusCompleted:
		return statusOK
	case ledger.StatusFailed:
		return statusError
	case ledger.StatusPending, ledger.StatusCanceled:
		return statusWarn
	default:
		return statusInfo
	}
}

// ledgerStatsKind is the level of the most severe status present in stats.
func ledgerStatsKind(stats map[string]int) statusKind {
	kind := statusOK
	for status, count := range stats {
		if count == 0 {
			continue
		}
		switch k := ledgerStatusKind(ledger.Status(status)); {
		case k == statusError:
			return statusError
		case k == statusWarn:
			kind = statusWarn
		}
	}
	return kind
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-*s [%s]", statusColumns, label+":", style.tag)
	if message != "" {
		line += " " + message
	}
	if !colorize {
		return line
	}
	return style.color + line + ansiReset
}

// renderTransactionLine summarizes a transaction with the phase its cursor
// is on.
func renderTransactionLine(label string, tx *api.Transaction, colorize bool) string {
	status := ledger.Status(tx.Status)
	message := fmt.Sprintf("%s #%d %s", tx.Kind, tx.ID, status)
	switch {
	case tx.Complete:
	case tx.Failure != nil:
		message += fmt.Sprintf(" in %s (%s lane)", tx.Failure.PhaseName, tx.Failure.Lane)
	case tx.Cursor < len(tx.Phases):
		message += " at " + tx.Phases[tx.Cursor].Name
	}
	message += fmt.Sprintf(" (%d%%)", tx.Percent)
	return renderStatusLine(label, ledgerStatusKind(status), message, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = statusStyles[statusInfo].color + lines[i] + ansiReset
		}
	}
	return lines
}
