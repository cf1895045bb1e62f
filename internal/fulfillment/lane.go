package fulfillment

import (
	"context"
	"fmt"
)

// LaneStatus is the lifecycle state of a single lane slot.
type LaneStatus uint8

const (
	// LaneNotApplicable marks a slot without work. It never changes.
	LaneNotApplicable LaneStatus = iota
	LaneWaiting
	LaneRunning
	LaneDone
	// LaneFailed marks a lane whose task returned an error.
	LaneFailed
)

var laneStatusNames = [...]string{
	LaneNotApplicable: "na",
	LaneWaiting:       "wait",
	LaneRunning:       "running",
	LaneDone:          "done",
	LaneFailed:        "failed",
}

func (s LaneStatus) String() string {
	if int(s) < len(laneStatusNames) {
		return laneStatusNames[s]
	}
	return fmt.Sprintf("LaneStatus(%d)", uint8(s))
}

// Settled reports whether the status lets its phase advance.
func (s LaneStatus) Settled() bool {
	return s == LaneNotApplicable || s == LaneDone
}

// MarshalText encodes the short status name.
func (s LaneStatus) MarshalText() ([]byte, error) {
	if int(s) >= len(laneStatusNames) {
		return nil, fmt.Errorf("unknown lane status %d", uint8(s))
	}
	return []byte(laneStatusNames[s]), nil
}

// UnmarshalText decodes the short status name.
func (s *LaneStatus) UnmarshalText(text []byte) error {
	for i, name := range laneStatusNames {
		if name == string(text) {
			*s = LaneStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lane status %q", text)
}

// Task is one lane's unit of asynchronous work. Run must return once ctx is
// done.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Slot indices of the three actors in the reference pipelines.
const (
	SlotClient = iota
	SlotRuntime
	SlotChain
	SlotCount
)

var slotNames = [SlotCount]string{"client", "runtime", "chain"}

// SlotName names the actor behind a lane slot of the reference pipelines.
func SlotName(slot int) string {
	if slot >= 0 && slot < SlotCount {
		return slotNames[slot]
	}
	return fmt.Sprintf("lane%d", slot)
}

// Lane is a lane slot: either absent, or carrying a task and its status.
// A lane without a task is always LaneNotApplicable.
type Lane struct {
	task   Task
	status LaneStatus
}

// Absent returns a lane slot with no work.
func Absent() Lane {
	return Lane{}
}

// Pending returns a lane carrying task in the waiting state. A nil task yields
// an absent lane.
func Pending(task Task) Lane {
	if task == nil {
		return Lane{}
	}
	return Lane{task: task, status: LaneWaiting}
}

// HasWork reports whether the lane carries a task.
func (l Lane) HasWork() bool {
	return l.task != nil
}

// Status returns the lane's current status.
func (l Lane) Status() LaneStatus {
	return l.status
}

// Task returns the lane's task, or nil for an absent lane.
func (l Lane) Task() Task {
	return l.task
}

func (l Lane) withStatus(status LaneStatus) Lane {
	if l.task == nil {
		return l
	}
	l.status = status
	return l
}

// runnable lanes are launched when their phase is driven. A running or failed
// lane in a record without a recorded failure is interrupted work and is
// started again.
func (l Lane) runnable() bool {
	return l.task != nil && l.status != LaneDone
}
