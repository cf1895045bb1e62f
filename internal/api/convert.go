package api

import (
	"time"

	"datamart/internal/fulfillment"
	"datamart/internal/tracker"
)

// FromProgress converts a snapshot into phase DTOs plus failure detail.
func FromProgress(p fulfillment.Progress) ([]Phase, *Failure) {
	phases := make([]Phase, 0, p.Len())
	for _, phase := range p.Phases() {
		dto := Phase{Name: phase.Name(), Lanes: make([]Lane, 0, phase.Width())}
		for slot, status := range phase.Statuses() {
			dto.Lanes = append(dto.Lanes, Lane{
				Actor:  fulfillment.SlotName(slot),
				Status: status.String(),
			})
		}
		phases = append(phases, dto)
	}
	var failure *Failure
	if f := p.Failure(); f != nil {
		failure = &Failure{
			Phase:     f.Phase,
			PhaseName: f.PhaseName,
			Lane:      fulfillment.SlotName(f.Lane),
		}
		if f.Err != nil {
			failure.Message = f.Err.Error()
		}
	}
	return phases, failure
}

// FromView converts a tracker view to its API representation.
func FromView(view tracker.View) Transaction {
	phases, failure := FromProgress(view.Progress)
	dto := Transaction{
		Kind:       string(view.Kind),
		ID:         view.Ref,
		Title:      view.Kind.Title(),
		SessionID:  view.SessionID,
		Status:     string(view.Status),
		Live:       view.Live,
		Cursor:     view.Progress.Cursor(),
		PhaseCount: view.Progress.Len(),
		Percent:    view.Progress.PercentComplete(),
		Complete:   view.Progress.IsComplete(),
		Phases:     phases,
		Failure:    failure,
		Error:      view.Error,
		StartedAt:  formatTime(view.StartedAt),
		UpdatedAt:  formatTime(view.UpdatedAt),
	}
	if view.FinishedAt != nil && view.Progress.IsComplete() {
		dto.CompletedAt = formatTime(*view.FinishedAt)
	}
	return dto
}

// FromViews converts a slice of tracker views into API DTOs.
func FromViews(views []tracker.View) []Transaction {
	out := make([]Transaction, 0, len(views))
	for _, view := range views {
		out = append(out, FromView(view))
	}
	return out
}

// FromStatusSummary converts tracker diagnostics.
func FromStatusSummary(summary tracker.StatusSummary) TrackerStatus {
	status := TrackerStatus{
		Running:     summary.Running,
		Sessions:    summary.Sessions,
		Active:      summary.Active,
		LastError:   summary.LastError,
		LedgerStats: make(map[string]int, len(summary.LedgerStats)),
	}
	for key, count := range summary.LedgerStats {
		status.LedgerStats[string(key)] = count
	}
	if summary.LastSession != nil {
		last := FromView(*summary.LastSession)
		status.Last = &last
	}
	return status
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp, returning the zero time when value is
// empty or malformed.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
