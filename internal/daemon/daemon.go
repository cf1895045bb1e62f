package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"datamart/internal/config"
	"datamart/internal/ledger"
	"datamart/internal/logging"
	"datamart/internal/notifications"
	"datamart/internal/tracker"
)

// Daemon hosts the tracker and API server and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	tracker  *tracker.Manager
	notifier notifications.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Tracker      tracker.StatusSummary
	LedgerPath   string
	LockFilePath string
	APIBind      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, tr *tracker.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || tr == nil {
		return nil, errors.New("daemon requires config, store, and tracker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		tracker:  tr,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers records a crash left running,
// resumes interrupted transactions and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another datamart daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.listen(); err != nil {
		d.abortStart()
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.recover(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	d.api.serve(d.ctx)

	d.running.Store(true)
	d.logger.Info("datamart daemon started",
		logging.Event("daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Bool("resume_interrupted", d.cfg.Tracker.ResumeInterrupted),
	)
	return nil
}

// abortStart undoes a partial Start. Drives recover may have resumed are
// interrupted and recorded pending before the lock is released.
func (d *Daemon) abortStart() {
	d.api.stop()
	d.cancel()
	d.tracker.Stop()
	_ = d.lock.Unlock()
	d.ctx = nil
	d.cancel = nil
}

// recover marks records left running by a crash as pending and, when
// configured, reopens every pending transaction so it resumes at its stored
// phase.
func (d *Daemon) recover(ctx context.Context) error {
	reset, err := d.store.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("reset running records: %w", err)
	}
	if reset > 0 {
		d.logger.Info("recovered interrupted records",
			logging.Event("ledger_recovered"),
			logging.Int64("count", reset),
		)
	}
	if !d.cfg.Tracker.ResumeInterrupted || !d.cfg.Tracker.Persist {
		return nil
	}

	pending, err := d.store.List(ctx, ledger.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending records: %w", err)
	}
	for _, record := range pending {
		if _, err := d.tracker.Open(ctx, record.Kind, record.Ref); err != nil {
			logging.WithTransaction(d.logger, record.Kind, record.Ref).Warn("failed to resume transaction",
				logging.Error(err),
				logging.Event("resume_failed"),
				logging.Hint("retry the transaction from the CLI"),
			)
		}
	}
	return nil
}

// Stop stops the API server, interrupts running drives and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.tracker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.Event("lock_release_failed"),
			logging.Hint("remove the lock file if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("datamart daemon stopped", logging.Event("daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Tracker exposes the session manager.
func (d *Daemon) Tracker() *tracker.Manager {
	return d.tracker
}

// APIAddress returns the address the API server listens on, or an empty
// string before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Health returns aggregate ledger diagnostics.
func (d *Daemon) Health(ctx context.Context) (ledger.HealthSummary, error) {
	return d.store.Health(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Tracker:      d.tracker.Status(ctx),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      d.api.address(),
	}
}
