package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/logging"
	"datamart/internal/services"
)

// run drives one session to a terminal state. It owns record for the
// lifetime of the drive.
func (m *Manager) run(ctx context.Context, s *session, start fulfillment.Progress, record *ledger.Record) {
	defer m.wg.Done()
	defer close(s.done)

	ctx = services.WithTransaction(ctx, string(s.key.Kind), s.key.Ref)
	ctx = services.WithSessionID(ctx, s.id)
	logger := logging.WithContext(ctx, m.logger)
	sampler := logging.NewProgressSampler(m.cfg.Tracker.ProgressBucket)

	logger.Info("fulfillment started",
		logging.Event("fulfillment_start"),
		logging.Int("cursor", start.Cursor()),
		logging.Int("phase_count", start.Len()),
		logging.Percent(start.PercentComplete()),
	)

	prev := start
	final, err := fulfillment.Drive(ctx, start, func(p fulfillment.Progress) {
		m.publish(s, p)
		logLaneChanges(logger, prev, p)
		if p.Cursor() != prev.Cursor() {
			m.advanced(ctx, logger, sampler, record, p)
		}
		prev = p
	})
	m.finish(logger, s, record, final, err)
}

func (m *Manager) publish(s *session, p fulfillment.Progress) {
	m.mu.Lock()
	s.progress = p
	s.updated = time.Now().UTC()
	m.mu.Unlock()
}

func (m *Manager) advanced(ctx context.Context, logger *slog.Logger, sampler *logging.ProgressSampler, record *ledger.Record, p fulfillment.Progress) {
	finished, _ := p.Phase(p.Cursor() - 1)
	percent := p.PercentComplete()
	if sampler.ShouldLog(float64(percent), finished.Name()) {
		logger.Info("phase complete",
			logging.Event("phase_advance"),
			logging.Phase(finished.Name()),
			logging.Int("cursor", p.Cursor()),
			logging.Percent(percent),
		)
	}
	if record == nil {
		return
	}
	record.Cursor = p.Cursor()
	record.PhaseName = ""
	if current, ok := p.Current(); ok {
		record.PhaseName = current.Name()
	}
	if err := m.store.Update(ctx, record); err != nil {
		logger.Warn("failed to persist phase advance",
			logging.Error(err),
			logging.Event("ledger_update_failed"),
			logging.Hint("progress will resume from an earlier phase after restart"),
		)
	}
}

func logLaneChanges(logger *slog.Logger, prev, next fulfillment.Progress) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	index := next.Cursor()
	if failure := next.Failure(); failure != nil {
		index = failure.Phase
	}
	before, ok := prev.Phase(index)
	if !ok {
		return
	}
	after, _ := next.Phase(index)
	old := before.Statuses()
	for slot, status := range after.Statuses() {
		if slot < len(old) && old[slot] == status {
			continue
		}
		logger.Debug("lane transition",
			logging.Event("lane_transition"),
			logging.Phase(after.Name()),
			logging.Lane(slot),
			logging.String("status", status.String()),
		)
	}
}

// finish records the terminal state of a drive. An interruption caused by
// Stop is stored pending so the next start resumes it.
func (m *Manager) finish(logger *slog.Logger, s *session, record *ledger.Record, final fulfillment.Progress, err error) {
	m.mu.Lock()
	status := services.FailureStatus(err)
	if status == ledger.StatusCanceled && !s.userCanceled {
		status = ledger.StatusPending
	}
	now := time.Now().UTC()
	s.progress = final
	s.status = status
	s.err = nil
	if status == ledger.StatusFailed {
		s.err = err
	}
	s.updated = now
	s.finished = &now
	s.cancel()
	m.mu.Unlock()

	switch status {
	case ledger.StatusCompleted:
		logger.Info("fulfillment complete",
			logging.Event("fulfillment_complete"),
			logging.Percent(final.PercentComplete()),
			logging.Duration("elapsed", now.Sub(s.started)),
		)
	case ledger.StatusFailed:
		m.setLastError(err)
		attrs := []logging.Attr{
			logging.Error(err),
			logging.Hint("retry the transaction once the failing lane is fixed"),
		}
		var failure *fulfillment.WorkFailure
		if errors.As(err, &failure) {
			attrs = append(attrs,
				logging.Phase(failure.PhaseName),
				logging.Lane(failure.Lane),
			)
		}
		logging.ErrorWithContext(logger, "fulfillment failed", "fulfillment_failed", attrs...)
	case ledger.StatusCanceled:
		logger.Info("fulfillment canceled",
			logging.Event("fulfillment_canceled"),
			logging.Int("cursor", final.Cursor()),
		)
	default:
		logger.Info("fulfillment interrupted",
			logging.Event("fulfillment_interrupted"),
			logging.Int("cursor", final.Cursor()),
		)
	}

	m.notifyOutcome(logger, s.key, status, err)

	if record == nil {
		return
	}
	record.Status = status
	record.Cursor = final.Cursor()
	record.PhaseName = ""
	if current, ok := final.Current(); ok {
		record.PhaseName = current.Name()
	}
	record.ErrorMessage = ""
	if status == ledger.StatusFailed {
		record.ErrorMessage = err.Error()
	}
	if status == ledger.StatusPending {
		record.SessionID = ""
	}
	// The drive context is already done here; the final write must still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if uerr := m.store.Update(ctx, record); uerr != nil {
		logger.Warn("failed to persist fulfillment outcome",
			logging.Error(uerr),
			logging.Event("ledger_update_failed"),
			logging.Hint("check ledger database access"),
		)
	}
}

const notifyTimeout = 15 * time.Second

// notifyOutcome announces completed and failed drives without holding up
// waiters. Stop waits for pending deliveries.
func (m *Manager) notifyOutcome(logger *slog.Logger, key Key, status ledger.Status, err error) {
	if !m.notifier.Enabled() {
		return
	}
	if status != ledger.StatusCompleted && status != ledger.StatusFailed {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		var nerr error
		if status == ledger.StatusCompleted {
			nerr = m.notifier.NotifyCompleted(ctx, key.Kind, key.Ref)
		} else {
			nerr = m.notifier.NotifyFailed(ctx, key.Kind, key.Ref, err)
		}
		if nerr != nil {
			logger.Warn("fulfillment notification failed",
				logging.Error(nerr),
				logging.Event("notification_failed"),
				logging.Hint("check notifications.ntfy_topic"),
			)
		}
	}()
}
