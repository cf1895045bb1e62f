package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"datamart/internal/config"
	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/logging"
	"datamart/internal/notifications"
	"datamart/internal/services"
)

// Manager coordinates fulfillment sessions.
type Manager struct {
	cfg      *config.Config
	store    *ledger.Store
	source   PipelineSource
	notifier notifications.Service
	logger   *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.RWMutex
	sessions map[Key]*session
	stopped  bool
	lastErr  error
	lastKey  *Key
}

type session struct {
	key      Key
	id       string
	cancel   context.CancelFunc
	done     chan struct{}
	progress fulfillment.Progress
	status   ledger.Status
	err      error
	started  time.Time
	updated  time.Time
	finished *time.Time
	// userCanceled separates an explicit Cancel from a manager shutdown.
	userCanceled bool
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithSource replaces the pipeline builder derived from configuration.
func WithSource(source PipelineSource) Option {
	return func(m *Manager) {
		if source != nil {
			m.source = source
		}
	}
}

// WithNotifier replaces the notification service derived from configuration.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// New constructs a tracker. store may be nil, in which case nothing is
// persisted.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		store:      store,
		source:     fulfillment.NewBuilder(cfg.Timing()),
		notifier:   notifications.NewService(cfg),
		logger:     logging.NewComponentLogger(logger, "tracker"),
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[Key]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) persisting() bool {
	return m.store != nil && m.cfg.Tracker.Persist
}

func validateKey(kind fulfillment.Kind, ref int64) (Key, error) {
	if !kind.Valid() {
		return Key{}, services.Wrap(services.ErrValidation, "tracker", "open", "unknown kind "+string(kind), fulfillment.ErrUnknownKind)
	}
	if ref < 0 {
		return Key{}, services.Wrap(services.ErrValidation, "tracker", "open", "transaction id must not be negative", nil)
	}
	return Key{Kind: kind, Ref: ref}, nil
}

// Open attaches to the session for kind/ref, starting one when none is live.
// A transaction the ledger marks completed opens already complete without
// running any lane work; an interrupted one resumes at its stored phase.
func (m *Manager) Open(ctx context.Context, kind fulfillment.Kind, ref int64) (View, error) {
	key, err := validateKey(kind, ref)
	if err != nil {
		return View{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return View{}, services.Wrap(services.ErrTransient, "tracker", "open", "tracker stopped", nil)
	}
	if s, ok := m.sessions[key]; ok {
		return m.viewLocked(s), nil
	}

	var record *ledger.Record
	if m.persisting() {
		if record, err = m.store.Get(ctx, key.Kind, key.Ref); err != nil {
			return View{}, services.Wrap(services.ErrTransient, "tracker", "open", "read ledger", err)
		}
	}
	s, err := m.startLocked(ctx, key, record)
	if err != nil {
		return View{}, err
	}
	return m.viewLocked(s), nil
}

// startLocked positions a new session from the stored record and launches
// its drive. m.mu must be held.
func (m *Manager) startLocked(ctx context.Context, key Key, record *ledger.Record) (*session, error) {
	completed := record != nil && record.Status == ledger.StatusCompleted
	phases, err := m.source.Build(key.Kind, completed)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "tracker", "build", key.String(), err)
	}

	now := time.Now().UTC()
	s := &session{
		key:     key,
		id:      uuid.NewString(),
		done:    make(chan struct{}),
		status:  ledger.StatusRunning,
		started: now,
		updated: now,
	}

	switch {
	case completed:
		s.progress = fulfillment.Restore(phases, len(phases))
		s.status = ledger.StatusCompleted
		s.finished = record.CompletedAt
		close(s.done)
		m.sessions[key] = s
		return s, nil
	case record != nil && m.cfg.Tracker.ResumeInterrupted && record.Cursor > 0:
		progress, err := fulfillment.ResumeAt(phases, record.Cursor)
		if err != nil {
			m.logger.Warn("stored cursor out of range; starting over",
				logging.String("transaction", key.String()),
				logging.Int("cursor", record.Cursor),
				logging.Int("phase_count", len(phases)),
				logging.Event("resume_rejected"),
				logging.Hint("the pipeline shape changed since the record was written"),
			)
			progress = fulfillment.NewProgress(phases)
		}
		s.progress = progress
	default:
		s.progress = fulfillment.NewProgress(phases)
	}

	var stored *ledger.Record
	if m.persisting() {
		if stored, err = m.store.Begin(ctx, key.Kind, key.Ref, len(phases), s.progress.Cursor(), s.id); err != nil {
			return nil, services.Wrap(services.ErrTransient, "tracker", "begin", key.String(), err)
		}
	}

	m.launchLocked(s, stored)
	return s, nil
}

func (m *Manager) launchLocked(s *session, record *ledger.Record) {
	runCtx, cancel := context.WithCancel(m.baseCtx)
	s.cancel = cancel
	m.sessions[s.key] = s
	key := s.key
	m.lastKey = &key
	m.wg.Add(1)
	go m.run(runCtx, s, s.progress, record)
}

// Get returns the latest snapshot of a live or finished in-memory session.
func (m *Manager) Get(kind fulfillment.Kind, ref int64) (View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[Key{Kind: kind, Ref: ref}]
	if !ok {
		return View{}, false
	}
	return m.viewLocked(s), true
}

// Lookup returns the in-memory session for kind/ref, falling back to the
// ledger record rendered at its stored phase.
func (m *Manager) Lookup(ctx context.Context, kind fulfillment.Kind, ref int64) (View, error) {
	key, err := validateKey(kind, ref)
	if err != nil {
		return View{}, err
	}
	if view, ok := m.Get(kind, ref); ok {
		return view, nil
	}
	if !m.persisting() {
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "lookup", key.String(), nil)
	}
	record, err := m.store.Get(ctx, kind, ref)
	if err != nil {
		return View{}, services.Wrap(services.ErrTransient, "tracker", "lookup", "read ledger", err)
	}
	if record == nil {
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "lookup", key.String(), nil)
	}
	return m.viewFromRecord(record)
}

// List returns every in-memory session plus ledger records without a live
// session, ordered by kind then id.
func (m *Manager) List(ctx context.Context) ([]View, error) {
	m.mu.RLock()
	views := make([]View, 0, len(m.sessions))
	seen := make(map[Key]struct{}, len(m.sessions))
	for key, s := range m.sessions {
		views = append(views, m.viewLocked(s))
		seen[key] = struct{}{}
	}
	m.mu.RUnlock()

	if m.persisting() {
		records, err := m.store.List(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "tracker", "list", "read ledger", err)
		}
		for _, record := range records {
			if _, ok := seen[Key{Kind: record.Kind, Ref: record.Ref}]; ok {
				continue
			}
			view, err := m.viewFromRecord(record)
			if err != nil {
				continue
			}
			views = append(views, view)
		}
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Kind != views[j].Kind {
			return views[i].Kind < views[j].Kind
		}
		return views[i].Ref < views[j].Ref
	})
	return views, nil
}

// Wait blocks until the session for kind/ref stops driving or ctx is done.
func (m *Manager) Wait(ctx context.Context, kind fulfillment.Kind, ref int64) (View, error) {
	m.mu.RLock()
	s, ok := m.sessions[Key{Kind: kind, Ref: ref}]
	var done <-chan struct{}
	if ok {
		done = s.done
	}
	m.mu.RUnlock()
	if !ok {
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "wait", Key{Kind: kind, Ref: ref}.String(), nil)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked(s), nil
}

// Status returns the latest tracker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: !m.stopped, Sessions: len(m.sessions)}
	for _, s := range m.sessions {
		if s.status == ledger.StatusRunning {
			summary.Active++
		}
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastKey != nil {
		if s, ok := m.sessions[*m.lastKey]; ok {
			view := m.viewLocked(s)
			summary.LastSession = &view
		}
	}
	m.mu.RUnlock()

	if m.persisting() {
		stats, err := m.store.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read ledger stats",
				logging.Error(err),
				logging.Event("ledger_stats_failed"),
				logging.Hint("check ledger database access"),
			)
		}
		summary.LedgerStats = stats
	}
	return summary
}

// Stop interrupts every drive and waits for them to return. Interrupted
// sessions are recorded pending so they resume on the next start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.baseCancel()
	m.wg.Wait()
}

func (m *Manager) viewLocked(s *session) View {
	view := View{
		Key:       s.key,
		SessionID: s.id,
		Status:    s.status,
		Progress:  s.progress,
		Live:      true,
		StartedAt: s.started,
		UpdatedAt: s.updated,
	}
	if s.err != nil {
		view.Error = s.err.Error()
	}
	if s.finished != nil {
		finished := *s.finished
		view.FinishedAt = &finished
	}
	return view
}

func (m *Manager) viewFromRecord(record *ledger.Record) (View, error) {
	phases, err := m.source.Build(record.Kind, record.Status == ledger.StatusCompleted)
	if err != nil {
		return View{}, err
	}
	progress, err := fulfillment.ResumeAt(phases, min(record.Cursor, len(phases)))
	if err != nil {
		return View{}, err
	}
	view := View{
		Key:       Key{Kind: record.Kind, Ref: record.Ref},
		SessionID: record.SessionID,
		Status:    record.Status,
		Progress:  progress,
		Error:     record.ErrorMessage,
		StartedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.CompletedAt != nil {
		completed := *record.CompletedAt
		view.FinishedAt = &completed
	}
	return view, nil
}

func (m *Manager) setLastError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
