package fulfillment

import "fmt"

// Progress is an immutable snapshot of a pipeline: its phases, the index of
// the first phase not yet completed, and the failure that halted the last
// drive, if any. Phases before the cursor are fully settled.
type Progress struct {
	phases  []Phase
	cursor  int
	failure *WorkFailure
}

// NewProgress starts a record at the first phase.
func NewProgress(phases []Phase) Progress {
	return Restore(phases, 0)
}

// Restore rebuilds a record from stored phases and cursor as given. Drive
// rejects the record if the cursor is out of range or an earlier phase is not
// settled.
func Restore(phases []Phase, cursor int) Progress {
	cp := make([]Phase, len(phases))
	copy(cp, phases)
	return Progress{phases: cp, cursor: cursor}
}

// ResumeAt rebuilds a record positioned at cursor, marking every lane of the
// earlier phases done and returning lanes of later phases to waiting.
func ResumeAt(phases []Phase, cursor int) (Progress, error) {
	if cursor < 0 || cursor > len(phases) {
		return Progress{}, fmt.Errorf("%w: cursor %d outside [0, %d]", ErrInvalidCursor, cursor, len(phases))
	}
	cp := make([]Phase, len(phases))
	for i, phase := range phases {
		if i < cursor {
			cp[i] = phase.completed()
			continue
		}
		cp[i] = phase.mapLanes(func(l Lane) Lane { return l.withStatus(LaneWaiting) })
	}
	return Progress{phases: cp, cursor: cursor}, nil
}

// Phases returns a copy of the phase list.
func (p Progress) Phases() []Phase {
	cp := make([]Phase, len(p.phases))
	copy(cp, p.phases)
	return cp
}

// Phase returns phase i.
func (p Progress) Phase(i int) (Phase, bool) {
	if i < 0 || i >= len(p.phases) {
		return Phase{}, false
	}
	return p.phases[i], true
}

// Len is the number of phases.
func (p Progress) Len() int {
	return len(p.phases)
}

// Cursor is the index of the first phase not yet completed.
func (p Progress) Cursor() int {
	return p.cursor
}

// Current returns the phase at the cursor; false once complete.
func (p Progress) Current() (Phase, bool) {
	return p.Phase(p.cursor)
}

// Failure returns the failure recorded by the last drive, or nil.
func (p Progress) Failure() *WorkFailure {
	return p.failure
}

// IsComplete reports whether every phase has completed. A record with no
// phases is complete.
func (p Progress) IsComplete() bool {
	return p.cursor >= len(p.phases)
}

// PercentComplete is floor(100 * cursor / phases). It counts whole phases
// only and reports 100 for a record with no phases.
func (p Progress) PercentComplete() int {
	if len(p.phases) == 0 {
		return 100
	}
	cursor := min(max(p.cursor, 0), len(p.phases))
	return 100 * cursor / len(p.phases)
}

// IsComplete reports whether p has completed every phase.
func IsComplete(p Progress) bool {
	return p.IsComplete()
}

// PercentComplete reports p's completed share of phases as an integer percent.
func PercentComplete(p Progress) int {
	return p.PercentComplete()
}

// Validate checks the cursor range and that every phase before the cursor is
// settled.
func (p Progress) Validate() error {
	if p.cursor < 0 || p.cursor > len(p.phases) {
		return fmt.Errorf("%w: cursor %d outside [0, %d]", ErrInvalidCursor, p.cursor, len(p.phases))
	}
	for i := 0; i < p.cursor; i++ {
		if !p.phases[i].Settled() {
			return fmt.Errorf("%w: phase %d (%s) before cursor %d is not done", ErrInvalidCursor, i, p.phases[i].name, p.cursor)
		}
	}
	return nil
}

// ResetFailed returns a copy with failed lanes back in waiting and the failure
// cleared, ready to be driven again.
func (p Progress) ResetFailed() Progress {
	phases := make([]Phase, len(p.phases))
	for i, phase := range p.phases {
		phases[i] = phase.mapLanes(func(l Lane) Lane {
			if l.status == LaneFailed {
				return l.withStatus(LaneWaiting)
			}
			return l
		})
	}
	return Progress{phases: phases, cursor: p.cursor}
}

func (p Progress) withLane(phase, lane int, status LaneStatus) Progress {
	phases := p.Phases()
	phases[phase] = phases[phase].withLane(lane, status)
	return Progress{phases: phases, cursor: p.cursor, failure: p.failure}
}

func (p Progress) withFailure(f *WorkFailure) Progress {
	return Progress{phases: p.phases, cursor: p.cursor, failure: f}
}

func (p Progress) advance() Progress {
	return Progress{phases: p.phases, cursor: p.cursor + 1}
}
