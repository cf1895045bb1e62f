package fulfillment

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Observer receives every snapshot Drive publishes, in order.
type Observer func(Progress)

type transition struct {
	lane   int
	status LaneStatus
}

// Drive advances p to completion. The lanes of each phase run concurrently;
// the phase advances once every launched lane has returned. Each lane
// transition and each advance yields a new snapshot that is passed to observe
// before Drive continues.
//
// A lane error marks the lane failed. Sibling lanes are still joined, a
// snapshot carrying the failure is published, and Drive returns the first
// *WorkFailure without advancing. Once ctx is done Drive publishes nothing
// further, waits for running lanes to return, and returns the last published
// snapshot together with ctx.Err().
func Drive(ctx context.Context, p Progress, observe Observer) (Progress, error) {
	if observe == nil {
		observe = func(Progress) {}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.failure != nil {
		return p, p.failure
	}

	for !p.IsComplete() {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		next, err := drivePhase(ctx, p, observe)
		if err != nil {
			return next, err
		}
		p = next.advance()
		observe(p)
	}
	return p, nil
}

func drivePhase(ctx context.Context, p Progress, observe Observer) (Progress, error) {
	index := p.cursor
	phase := p.phases[index]

	var launch []int
	for i, lane := range phase.lanes {
		if lane.runnable() {
			launch = append(launch, i)
		}
	}
	if len(launch) == 0 {
		return p, nil
	}

	events := make(chan transition)
	emit := func(t transition) bool {
		select {
		case events <- t:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var g errgroup.Group
	for _, slot := range launch {
		task := phase.lanes[slot].task
		g.Go(func() error {
			if !emit(transition{lane: slot, status: LaneRunning}) {
				return ctx.Err()
			}
			if err := task.Run(ctx); err != nil {
				emit(transition{lane: slot, status: LaneFailed})
				return &WorkFailure{Phase: index, PhaseName: phase.name, Lane: slot, Err: err}
			}
			emit(transition{lane: slot, status: LaneDone})
			return nil
		})
	}

	joined := make(chan error, 1)
	go func() {
		joined <- g.Wait()
		close(events)
	}()

	for t := range events {
		if ctx.Err() != nil {
			continue
		}
		p = p.withLane(index, t.lane, t.status)
		observe(p)
	}
	err := <-joined

	if ctxErr := ctx.Err(); ctxErr != nil {
		return p, ctxErr
	}
	if err != nil {
		var failure *WorkFailure
		if !errors.As(err, &failure) {
			failure = &WorkFailure{Phase: index, PhaseName: phase.name, Lane: -1, Err: err}
		}
		p = p.withFailure(failure)
		observe(p)
		return p, failure
	}
	return p, nil
}
