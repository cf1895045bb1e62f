package fulfillment_test

import (
	"testing"

	"datamart/internal/fulfillment"
)

func TestPercentCompleteFloors(t *testing.T) {
	cases := []struct {
		kind   fulfillment.Kind
		cursor int
		want   int
	}{
		{fulfillment.KindItem, 0, 0},
		{fulfillment.KindItem, 1, 33},
		{fulfillment.KindItem, 2, 66},
		{fulfillment.KindItem, 3, 100},
		{fulfillment.KindOrder, 1, 14},
		{fulfillment.KindOrder, 3, 42},
		{fulfillment.KindOrder, 6, 85},
		{fulfillment.KindOrder, 7, 100},
	}
	for _, tc := range cases {
		phases, err := fastBuilder().Build(tc.kind, false)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		p, err := fulfillment.ResumeAt(phases, tc.cursor)
		if err != nil {
			t.Fatalf("ResumeAt failed: %v", err)
		}
		if got := fulfillment.PercentComplete(p); got != tc.want {
			t.Errorf("%s cursor %d percent = %d, want %d", tc.kind, tc.cursor, got, tc.want)
		}
		if got := fulfillment.IsComplete(p); got != (tc.cursor == len(phases)) {
			t.Errorf("%s cursor %d IsComplete = %v", tc.kind, tc.cursor, got)
		}
	}
}

func TestResumeAtSettlesEarlierPhases(t *testing.T) {
	phases, err := fastBuilder().Build(fulfillment.KindOrder, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p, err := fulfillment.ResumeAt(phases, 4)
	if err != nil {
		t.Fatalf("ResumeAt failed: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	for i, phase := range p.Phases() {
		for j, lane := range phase.Lanes() {
			want := fulfillment.LaneNotApplicable
			if lane.HasWork() {
				want = fulfillment.LaneWaiting
				if i < 4 {
					want = fulfillment.LaneDone
				}
			}
			if lane.Status() != want {
				t.Fatalf("phase %d lane %d = %s, want %s", i, j, lane.Status(), want)
			}
		}
	}
	current, ok := p.Current()
	if !ok || current.Name() != fulfillment.PhaseSellerReview {
		t.Fatalf("current phase = %q", current.Name())
	}
}

func TestLaneStatusText(t *testing.T) {
	for _, status := range []fulfillment.LaneStatus{
		fulfillment.LaneNotApplicable,
		fulfillment.LaneWaiting,
		fulfillment.LaneRunning,
		fulfillment.LaneDone,
		fulfillment.LaneFailed,
	} {
		text, err := status.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", status, err)
		}
		var decoded fulfillment.LaneStatus
		if err := decoded.UnmarshalText(text); err != nil || decoded != status {
			t.Fatalf("UnmarshalText(%q) = %v, %v", text, decoded, err)
		}
	}
	var s fulfillment.LaneStatus
	if err := s.UnmarshalText([]byte("paused")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestPendingNilTaskIsAbsent(t *testing.T) {
	lane := fulfillment.Pending(nil)
	if lane.HasWork() || lane.Status() != fulfillment.LaneNotApplicable {
		t.Fatalf("Pending(nil) = %v work=%v", lane.Status(), lane.HasWork())
	}
}
