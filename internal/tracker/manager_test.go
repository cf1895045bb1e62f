package tracker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"datamart/internal/config"
	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/logging"
	"datamart/internal/services"
	"datamart/internal/testsupport"
	"datamart/internal/tracker"
)

// stubSource builds a fixed pipeline from fresh tasks on every call.
type stubSource struct {
	phases func() []fulfillment.Phase
}

func (s stubSource) Build(kind fulfillment.Kind, complete bool) ([]fulfillment.Phase, error) {
	if !kind.Valid() {
		return nil, fulfillment.ErrUnknownKind
	}
	phases := s.phases()
	if complete {
		done, err := fulfillment.ResumeAt(phases, len(phases))
		if err != nil {
			return nil, err
		}
		return done.Phases(), nil
	}
	return phases, nil
}

func counting(n *atomic.Int32) fulfillment.TaskFunc {
	return func(context.Context) error {
		n.Add(1)
		return nil
	}
}

// blocking signals started and returns once release closes or ctx ends.
func blocking(started chan<- struct{}, release <-chan struct{}) fulfillment.TaskFunc {
	return func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func newManager(t *testing.T, cfg *config.Config, store *ledger.Store, opts ...tracker.Option) *tracker.Manager {
	t.Helper()
	m := tracker.New(cfg, store, logging.NewNop(), opts...)
	t.Cleanup(m.Stop)
	return m
}

func waitDone(t *testing.T, m *tracker.Manager, kind fulfillment.Kind, ref int64) tracker.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	view, err := m.Wait(ctx, kind, ref)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return view
}

func waitStarted(t *testing.T, started <-chan struct{}) {
	t.Helper()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("lane never started")
	}
}

func TestOpenDrivesToCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newManager(t, cfg, store)

	view, err := m.Open(context.Background(), fulfillment.KindItem, 7)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if view.SessionID == "" {
		t.Fatal("expected session id")
	}

	view = waitDone(t, m, fulfillment.KindItem, 7)
	if view.Status != ledger.StatusCompleted {
		t.Fatalf("status = %s, want completed", view.Status)
	}
	if !view.Progress.IsComplete() || view.Progress.PercentComplete() != 100 {
		t.Fatalf("progress not complete: cursor %d", view.Progress.Cursor())
	}

	record, err := store.Get(context.Background(), fulfillment.KindItem, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || record.Status != ledger.StatusCompleted || record.Cursor != 3 || record.CompletedAt == nil {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestOpenAttachesToLiveSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{fulfillment.NewPhase("wait", fulfillment.Pending(blocking(started, release)))}
	}}
	m := newManager(t, cfg, nil, tracker.WithSource(src))

	first, err := m.Open(context.Background(), fulfillment.KindOrder, 1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitStarted(t, started)
	second, err := m.Open(context.Background(), fulfillment.KindOrder, 1)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("expected same session, got %s and %s", first.SessionID, second.SessionID)
	}
	if second.Status != ledger.StatusRunning {
		t.Fatalf("status = %s, want running", second.Status)
	}

	close(release)
	if view := waitDone(t, m, fulfillment.KindOrder, 1); view.Status != ledger.StatusCompleted {
		t.Fatalf("status = %s, want completed", view.Status)
	}
}

func TestOpenCompletedRecordRunsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record, err := store.Begin(ctx, fulfillment.KindItem, 3, 2, 0, "old")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	record.Status = ledger.StatusCompleted
	record.Cursor = 2
	if err := store.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var runs atomic.Int32
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{
			fulfillment.NewPhase("a", fulfillment.Pending(counting(&runs))),
			fulfillment.NewPhase("b", fulfillment.Pending(counting(&runs))),
		}
	}}
	m := newManager(t, cfg, store, tracker.WithSource(src))

	view, err := m.Open(ctx, fulfillment.KindItem, 3)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if view.Status != ledger.StatusCompleted || view.Progress.PercentComplete() != 100 {
		t.Fatalf("expected completed view, got %s at %d%%", view.Status, view.Progress.PercentComplete())
	}
	waitDone(t, m, fulfillment.KindItem, 3)
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected no lane work, ran %d tasks", got)
	}
}

func TestFailureThenRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var attempts, firstPhase atomic.Int32
	flaky := fulfillment.TaskFunc(func(context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("node unreachable")
		}
		return nil
	})
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{
			fulfillment.NewPhase("encrypt", fulfillment.Pending(counting(&firstPhase))),
			fulfillment.NewPhase("submit", fulfillment.Absent(), fulfillment.Absent(), fulfillment.Pending(flaky)),
		}
	}}
	m := newManager(t, cfg, store, tracker.WithSource(src))

	if _, err := m.Open(ctx, fulfillment.KindItem, 9); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	view := waitDone(t, m, fulfillment.KindItem, 9)
	if view.Status != ledger.StatusFailed || view.Error == "" {
		t.Fatalf("expected failed view with error, got %s %q", view.Status, view.Error)
	}
	failure := view.Progress.Failure()
	if failure == nil || failure.Phase != 1 || failure.Lane != fulfillment.SlotChain {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	record, err := store.Get(ctx, fulfillment.KindItem, 9)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != ledger.StatusFailed || record.Cursor != 1 || record.ErrorMessage == "" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if summary := m.Status(ctx); summary.LastError == "" {
		t.Fatal("expected last error in status summary")
	}

	if _, err := m.Retry(ctx, fulfillment.KindItem, 9); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	view = waitDone(t, m, fulfillment.KindItem, 9)
	if view.Status != ledger.StatusCompleted {
		t.Fatalf("status after retry = %s, want completed", view.Status)
	}
	if got := firstPhase.Load(); got != 1 {
		t.Fatalf("settled phase re-ran: %d runs", got)
	}
}

func TestCancelThenRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{fulfillment.NewPhase("review", fulfillment.Pending(blocking(started, release)))}
	}}
	m := newManager(t, cfg, store, tracker.WithSource(src))

	if _, err := m.Open(ctx, fulfillment.KindOrder, 4); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitStarted(t, started)

	view, err := m.Cancel(fulfillment.KindOrder, 4)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if view.Status != ledger.StatusCanceled {
		t.Fatalf("status = %s, want canceled", view.Status)
	}
	record, err := store.Get(ctx, fulfillment.KindOrder, 4)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != ledger.StatusCanceled {
		t.Fatalf("record status = %s, want canceled", record.Status)
	}

	if _, err := m.Cancel(fulfillment.KindOrder, 4); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict cancelling a canceled session, got %v", err)
	}

	close(release)
	if _, err := m.Retry(ctx, fulfillment.KindOrder, 4); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if view := waitDone(t, m, fulfillment.KindOrder, 4); view.Status != ledger.StatusCompleted {
		t.Fatalf("status after retry = %s, want completed", view.Status)
	}
	if _, err := m.Retry(ctx, fulfillment.KindOrder, 4); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict retrying a completed session, got %v", err)
	}
}

func TestStopLeavesRecordPendingAndResumes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var firstRuns atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{
			fulfillment.NewPhase("encrypt", fulfillment.Pending(counting(&firstRuns))),
			fulfillment.NewPhase("upload", fulfillment.Pending(blocking(started, release))),
		}
	}}

	m := tracker.New(cfg, store, logging.NewNop(), tracker.WithSource(src))
	if _, err := m.Open(ctx, fulfillment.KindItem, 11); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitStarted(t, started)
	m.Stop()

	record, err := store.Get(ctx, fulfillment.KindItem, 11)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Status != ledger.StatusPending || record.Cursor != 1 || record.PhaseName != "upload" {
		t.Fatalf("unexpected record after stop: %+v", record)
	}
	if _, err := m.Open(ctx, fulfillment.KindItem, 11); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error from stopped tracker, got %v", err)
	}

	close(release)
	restarted := newManager(t, cfg, store, tracker.WithSource(src))
	view, err := restarted.Open(ctx, fulfillment.KindItem, 11)
	if err != nil {
		t.Fatalf("Open after restart failed: %v", err)
	}
	if view.Progress.Cursor() != 1 {
		t.Fatalf("resumed cursor = %d, want 1", view.Progress.Cursor())
	}
	if view := waitDone(t, restarted, fulfillment.KindItem, 11); view.Status != ledger.StatusCompleted {
		t.Fatalf("status = %s, want completed", view.Status)
	}
	if got := firstRuns.Load(); got != 1 {
		t.Fatalf("first phase ran %d times, want 1", got)
	}
}

func TestLookupAndListFallBackToLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record, err := store.Begin(ctx, fulfillment.KindOrder, 2, 7, 0, "")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	record.Status = ledger.StatusFailed
	record.Cursor = 4
	record.ErrorMessage = "review rejected"
	if err := store.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	m := newManager(t, cfg, store)
	view, err := m.Lookup(ctx, fulfillment.KindOrder, 2)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if view.Live || view.Status != ledger.StatusFailed || view.Progress.Cursor() != 4 || view.Progress.PercentComplete() != 57 {
		t.Fatalf("unexpected view: live=%v status=%s cursor=%d", view.Live, view.Status, view.Progress.Cursor())
	}
	if view.Error != "review rejected" {
		t.Fatalf("error = %q", view.Error)
	}

	if _, err := m.Lookup(ctx, fulfillment.KindItem, 99); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := m.Open(ctx, fulfillment.KindItem, 1); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitDone(t, m, fulfillment.KindItem, 1)

	views, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].Kind != fulfillment.KindItem || !views[0].Live || views[1].Kind != fulfillment.KindOrder || views[1].Live {
		t.Fatalf("unexpected ordering: %+v", views)
	}
}

func TestOpenValidatesKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPersistence())
	m := newManager(t, cfg, nil)

	if _, err := m.Open(context.Background(), fulfillment.Kind("bundle"), 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := m.Open(context.Background(), fulfillment.KindItem, -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative id, got %v", err)
	}
	if _, err := m.Cancel(fulfillment.KindItem, 5); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := m.Retry(context.Background(), fulfillment.KindItem, 5); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newManager(t, cfg, store)
	ctx := context.Background()

	if _, err := m.Open(ctx, fulfillment.KindItem, 5); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitDone(t, m, fulfillment.KindItem, 5)

	summary := m.Status(ctx)
	if !summary.Running || summary.Sessions != 1 || summary.Active != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.LastSession == nil || summary.LastSession.Ref != 5 {
		t.Fatalf("expected last session 5, got %+v", summary.LastSession)
	}
	if summary.LedgerStats[ledger.StatusCompleted] != 1 {
		t.Fatalf("unexpected ledger stats: %+v", summary.LedgerStats)
	}
}

func TestReadsIgnoreLedgerWhenNotPersisting(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPersistence())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Begin(ctx, fulfillment.KindOrder, 3, 7, 0, "elsewhere"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	m := newManager(t, cfg, store)
	if _, err := m.Lookup(ctx, fulfillment.KindOrder, 3); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for an unpersisted tracker, got %v", err)
	}
	views, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected no views, got %d", len(views))
	}
	if summary := m.Status(ctx); len(summary.LedgerStats) != 0 {
		t.Fatalf("expected no ledger stats, got %+v", summary.LedgerStats)
	}
}

func TestRestartFromScratchResetsStoredCursor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tracker.ResumeInterrupted = false
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record, err := store.Begin(ctx, fulfillment.KindOrder, 6, 2, 0, "old")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	record.Status = ledger.StatusFailed
	record.Cursor = 1
	record.PhaseName = "upload"
	record.ErrorMessage = "upload rejected"
	if err := store.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	src := stubSource{phases: func() []fulfillment.Phase {
		return []fulfillment.Phase{
			fulfillment.NewPhase("encrypt", fulfillment.Pending(blocking(started, release))),
			fulfillment.NewPhase("upload", fulfillment.Pending(fulfillment.TaskFunc(func(context.Context) error { return nil }))),
		}
	}}
	m := newManager(t, cfg, store, tracker.WithSource(src))

	view, err := m.Open(ctx, fulfillment.KindOrder, 6)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if view.Progress.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", view.Progress.Cursor())
	}
	waitStarted(t, started)

	stored, err := store.Get(ctx, fulfillment.KindOrder, 6)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != ledger.StatusRunning || stored.Cursor != 0 || stored.PhaseName != "" || stored.ErrorMessage != "" {
		t.Fatalf("expected running record back at cursor 0, got %+v", stored)
	}

	close(release)
	if view := waitDone(t, m, fulfillment.KindOrder, 6); view.Status != ledger.StatusCompleted {
		t.Fatalf("status = %s, want completed", view.Status)
	}
}
