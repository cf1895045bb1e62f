package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"datamart/internal/fulfillment"
)

// Begin inserts a record for kind/ref or marks an existing one running under
// a new session. cursor is the phase the drive starts from; when it differs
// from the stored cursor the stale phase name is cleared too.
func (s *Store) Begin(ctx context.Context, kind fulfillment.Kind, ref int64, phaseCount, cursor int, sessionID string) (*Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("begin record: %w: %q", fulfillment.ErrUnknownKind, string(kind))
	}
	if cursor < 0 || cursor > phaseCount {
		return nil, fmt.Errorf("begin %s: cursor %d outside 0..%d", recordTarget(kind, ref), cursor, phaseCount)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.write(
		ctx,
		recordTarget(kind, ref),
		`INSERT INTO fulfillment_records (
            kind, ref, status, cursor, phase_count, session_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(kind, ref) DO UPDATE SET
            status = excluded.status,
            phase_name = CASE WHEN cursor = excluded.cursor THEN phase_name ELSE NULL END,
            cursor = excluded.cursor,
            phase_count = excluded.phase_count,
            session_id = excluded.session_id,
            error_message = NULL,
            updated_at = excluded.updated_at`,
		string(kind),
		ref,
		StatusRunning,
		cursor,
		phaseCount,
		nullableString(sessionID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("begin record: %w", err)
	}
	return s.Get(ctx, kind, ref)
}

// Get fetches the record for kind/ref. It returns nil without error when no
// record exists.
func (s *Store) Get(ctx context.Context, kind fulfillment.Kind, ref int64) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM fulfillment_records WHERE kind = ? AND ref = ?`, string(kind), ref)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// Update persists changes to an existing record.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	if record.Status == StatusCompleted && record.CompletedAt == nil {
		completed := record.UpdatedAt
		record.CompletedAt = &completed
	}
	res, err := s.write(
		ctx,
		recordTarget(record.Kind, record.Ref),
		`UPDATE fulfillment_records
         SET status = ?, cursor = ?, phase_count = ?, phase_name = ?, error_message = ?,
             session_id = ?, updated_at = ?, completed_at = ?
         WHERE kind = ? AND ref = ?`,
		record.Status,
		record.Cursor,
		record.PhaseCount,
		nullableString(record.PhaseName),
		nullableString(record.ErrorMessage),
		nullableString(record.SessionID),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(record.CompletedAt),
		string(record.Kind),
		record.Ref,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update record %s/%d: %w", record.Kind, record.Ref, sql.ErrNoRows)
	}
	return nil
}

// List returns records filtered by status set (or all records when no status
// is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM fulfillment_records`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Remove deletes the record for kind/ref.
func (s *Store) Remove(ctx context.Context, kind fulfillment.Kind, ref int64) (bool, error) {
	res, err := s.write(ctx, recordTarget(kind, ref), `DELETE FROM fulfillment_records WHERE kind = ? AND ref = ?`, string(kind), ref)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed records.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.write(ctx, "completed records", `DELETE FROM fulfillment_records WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}
