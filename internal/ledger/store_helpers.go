package ledger

import (
	"database/sql"
	"errors"
	"time"

	"datamart/internal/fulfillment"
)

const recordColumns = "id, kind, ref, status, cursor, phase_count, phase_name, error_message, session_id, created_at, updated_at, completed_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           int64
		kind         string
		ref          int64
		status       string
		cursor       int
		phaseCount   int
		phaseName    sql.NullString
		errorMessage sql.NullString
		sessionID    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&kind,
		&ref,
		&status,
		&cursor,
		&phaseCount,
		&phaseName,
		&errorMessage,
		&sessionID,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		Kind:         fulfillment.Kind(kind),
		Ref:          ref,
		Status:       Status(status),
		Cursor:       cursor,
		PhaseCount:   phaseCount,
		PhaseName:    phaseName.String,
		ErrorMessage: errorMessage.String,
		SessionID:    sessionID.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
