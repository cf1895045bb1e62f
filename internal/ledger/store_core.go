package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"datamart/internal/config"
	"datamart/internal/fulfillment"
)

// Store persists fulfillment records in a SQLite ledger.
type Store struct {
	db   *sql.DB
	path string
}

// ErrLedgerBusy is returned when a write still finds the database locked
// after every retry.
var ErrLedgerBusy = errors.New("ledger busy")

const (
	writeAttempts   = 5
	writeBackoff    = 10 * time.Millisecond
	writeBackoffCap = 200 * time.Millisecond
)

var ledgerPragmas = [...]string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout = 5000",
}

// Open opens the ledger at cfg.LedgerPath, creating it on first use.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ledger directories: %w", err)
	}
	path := cfg.LedgerPath()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	store := &Store{db: db, path: path}
	if err := store.prepare(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) prepare(ctx context.Context) error {
	for _, pragma := range ledgerPragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("ledger %s: %w", pragma, err)
		}
	}
	return s.migrate(ctx)
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the ledger.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// recordTarget names a single record in write errors.
func recordTarget(kind fulfillment.Kind, ref int64) string {
	return fmt.Sprintf("record %s/%d", kind, ref)
}

// write runs a mutating statement against target, backing off while
// another connection (the daemon or a CLI reading the same file) holds the
// write lock.
func (s *Store) write(ctx context.Context, target, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	backoff := writeBackoff
	for attempt := 1; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !lockContention(err) {
			return nil, err
		}
		if attempt == writeAttempts {
			return nil, fmt.Errorf("%s: %w after %d attempts: %v", target, ErrLedgerBusy, attempt, err)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, writeBackoffCap)
	}
}

// lockContention reports SQLITE_BUSY and SQLITE_LOCKED, including their
// extended codes.
func lockContention(err error) bool {
	const (
		sqliteBusy   = 5
		sqliteLocked = 6
	)
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		code := coded.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}
