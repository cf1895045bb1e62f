package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"datamart/internal/api"
	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
	"datamart/internal/tracker"
)

func TestFromProgressNamesLanes(t *testing.T) {
	phases, err := fulfillment.Build(fulfillment.KindItem, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	dto, failure := api.FromProgress(fulfillment.NewProgress(phases))
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if len(dto) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(dto))
	}
	want := []api.Lane{{Actor: "client", Status: "wait"}, {Actor: "runtime", Status: "na"}, {Actor: "chain", Status: "wait"}}
	got := dto[1].Lanes
	if len(got) != len(want) {
		t.Fatalf("lanes = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lane %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if dto[1].Name != fulfillment.PhaseSubmitOnChain {
		t.Fatalf("phase name = %q", dto[1].Name)
	}
}

func TestFromViewCarriesStateAndTimes(t *testing.T) {
	phases, err := fulfillment.Build(fulfillment.KindOrder, true)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	view := tracker.View{
		Key:        tracker.Key{Kind: fulfillment.KindOrder, Ref: 12},
		SessionID:  "abc",
		Status:     ledger.StatusCompleted,
		Progress:   fulfillment.Restore(phases, len(phases)),
		Live:       true,
		StartedAt:  started,
		UpdatedAt:  finished,
		FinishedAt: &finished,
	}

	dto := api.FromView(view)
	if dto.Kind != "order" || dto.ID != 12 || dto.Title != "Query order" {
		t.Fatalf("unexpected identity: %+v", dto)
	}
	if !dto.Complete || dto.Percent != 100 || dto.Cursor != 7 || dto.PhaseCount != 7 {
		t.Fatalf("unexpected progress: %+v", dto)
	}
	if dto.StartedAt != "2026-03-01T12:00:00.000Z" || dto.CompletedAt != "2026-03-01T12:01:00.000Z" {
		t.Fatalf("unexpected timestamps: %q %q", dto.StartedAt, dto.CompletedAt)
	}
	if !api.ParseTime(dto.CompletedAt).Equal(finished) {
		t.Fatalf("ParseTime mismatch")
	}
}

func TestFromProgressReportsFailure(t *testing.T) {
	boom := errors.New("chain rejected")
	phase := fulfillment.NewPhase("submit", fulfillment.Absent(), fulfillment.Absent(),
		fulfillment.Pending(fulfillment.TaskFunc(func(ctx context.Context) error { return boom })))
	final, err := fulfillment.Drive(context.Background(), fulfillment.NewProgress([]fulfillment.Phase{phase}), nil)
	if err == nil {
		t.Fatal("expected work failure")
	}
	_, failure := api.FromProgress(final)
	if failure == nil || failure.Lane != "chain" || failure.PhaseName != "submit" || failure.Message != "chain rejected" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := tracker.StatusSummary{
		Running:     true,
		Sessions:    2,
		Active:      1,
		LedgerStats: map[ledger.Status]int{ledger.StatusCompleted: 3},
	}
	status := api.FromStatusSummary(summary)
	if !status.Running || status.Sessions != 2 || status.Active != 1 || status.LedgerStats["completed"] != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Last != nil {
		t.Fatalf("expected no last transaction")
	}
}
