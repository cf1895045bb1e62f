package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// ledgerVersion is stored in PRAGMA user_version. Bump it whenever
// schema.sql changes shape.
const ledgerVersion = 1

// ErrSchemaMismatch reports a ledger written by an incompatible build.
var ErrSchemaMismatch = errors.New("ledger schema mismatch")

// migrate creates the ledger on first open and otherwise checks that the
// stored version and the fulfillment_records columns still match Record.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read ledger version: %w", err)
	}
	switch version {
	case 0:
		return s.create(ctx)
	case ledgerVersion:
		return s.checkRecordColumns(ctx)
	default:
		return fmt.Errorf("%w: %s is version %d, this build reads version %d (move the file aside to start a fresh ledger)",
			ErrSchemaMismatch, s.path, version, ledgerVersion)
	}
}

func (s *Store) create(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", ledgerVersion)); err != nil {
		return fmt.Errorf("stamp ledger version: %w", err)
	}
	return tx.Commit()
}

// checkRecordColumns fails when fulfillment_records lacks a column that
// scanRecord reads.
func (s *Store) checkRecordColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('fulfillment_records')")
	if err != nil {
		return fmt.Errorf("inspect ledger columns: %w", err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect ledger columns: %w", err)
		}
		present = append(present, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect ledger columns: %w", err)
	}

	var missing []string
	for _, column := range strings.Split(recordColumns, ", ") {
		if !slices.Contains(present, column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s has no fulfillment_records column for %s",
			ErrSchemaMismatch, s.path, strings.Join(missing, ", "))
	}
	return nil
}
