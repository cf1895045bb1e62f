package tracker

import (
	"context"

	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/services"
)

// Cancel stops a running session. Published state is kept; the record is
// stored canceled at its current phase.
func (m *Manager) Cancel(kind fulfillment.Kind, ref int64) (View, error) {
	key := Key{Kind: kind, Ref: ref}
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "cancel", "no live session for "+key.String(), nil)
	}
	if s.status != ledger.StatusRunning {
		status := s.status
		m.mu.Unlock()
		return View{}, services.Wrap(services.ErrConflict, "tracker", "cancel", key.String()+" is "+string(status), nil)
	}
	s.userCanceled = true
	s.cancel()
	done := s.done
	m.mu.Unlock()

	<-done
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewLocked(s), nil
}

// Retry restarts a failed or canceled transaction. A failed session resumes
// with its failed lanes reset to waiting; a canceled one resumes at the
// start of the phase it was stopped in. Without a live session the ledger
// record decides whether a retry is allowed.
func (m *Manager) Retry(ctx context.Context, kind fulfillment.Kind, ref int64) (View, error) {
	key, err := validateKey(kind, ref)
	if err != nil {
		return View{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return View{}, services.Wrap(services.ErrTransient, "tracker", "retry", "tracker stopped", nil)
	}

	if s, ok := m.sessions[key]; ok {
		select {
		case <-s.done:
		default:
			// The outcome may not be in the ledger yet.
			if s.status != ledger.StatusRunning {
				return View{}, services.Wrap(services.ErrConflict, "tracker", "retry", key.String()+" is still finishing", nil)
			}
		}
		var next fulfillment.Progress
		switch s.status {
		case ledger.StatusFailed:
			next = s.progress.ResetFailed()
		case ledger.StatusCanceled, ledger.StatusPending:
			next, err = fulfillment.ResumeAt(s.progress.Phases(), s.progress.Cursor())
			if err != nil {
				return View{}, services.Wrap(services.ErrConflict, "tracker", "retry", key.String(), err)
			}
		default:
			return View{}, services.Wrap(services.ErrConflict, "tracker", "retry", key.String()+" is "+string(s.status), nil)
		}
		return m.restartLocked(ctx, s, next)
	}

	if m.store == nil {
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "retry", key.String(), nil)
	}
	record, err := m.store.Get(ctx, kind, ref)
	if err != nil {
		return View{}, services.Wrap(services.ErrTransient, "tracker", "retry", "read ledger", err)
	}
	if record == nil {
		return View{}, services.Wrap(services.ErrNotFound, "tracker", "retry", key.String(), nil)
	}
	switch record.Status {
	case ledger.StatusFailed, ledger.StatusCanceled, ledger.StatusPending:
	default:
		return View{}, services.Wrap(services.ErrConflict, "tracker", "retry", key.String()+" is "+string(record.Status), nil)
	}
	s, err := m.startLocked(ctx, key, record)
	if err != nil {
		return View{}, err
	}
	return m.viewLocked(s), nil
}

// restartLocked replaces a finished session with a new drive starting from
// progress. m.mu must be held.
func (m *Manager) restartLocked(ctx context.Context, prev *session, progress fulfillment.Progress) (View, error) {
	s := &session{
		key:      prev.key,
		id:       prev.id,
		done:     make(chan struct{}),
		progress: progress,
		status:   ledger.StatusRunning,
		started:  prev.started,
		updated:  prev.updated,
	}
	var record *ledger.Record
	if m.persisting() {
		var err error
		if record, err = m.store.Begin(ctx, s.key.Kind, s.key.Ref, progress.Len(), progress.Cursor(), s.id); err != nil {
			return View{}, services.Wrap(services.ErrTransient, "tracker", "retry", s.key.String(), err)
		}
	}
	m.launchLocked(s, record)
	return m.viewLocked(s), nil
}
