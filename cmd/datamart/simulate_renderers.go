package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"datamart/internal/fulfillment"
)

// progressRenderer presents the snapshots of a local drive.
type progressRenderer interface {
	Start(p fulfillment.Progress)
	Observe(p fulfillment.Progress)
	Finish(p fulfillment.Progress, err error)
}

// lineRenderer prints one line per lane transition and per advance, for
// pipes and logs.
type lineRenderer struct {
	out  io.Writer
	prev fulfillment.Progress
}

func newLineRenderer(out io.Writer) *lineRenderer {
	return &lineRenderer{out: out}
}

func (r *lineRenderer) Start(p fulfillment.Progress) {
	r.prev = p
	if phase, ok := p.Current(); ok {
		r.stepHeader(p, phase)
	}
}

func (r *lineRenderer) stepHeader(p fulfillment.Progress, phase fulfillment.Phase) {
	fmt.Fprintf(r.out, "step %d/%d: %s\n", p.Cursor()+1, p.Len(), phaseTitle(phase.Name()))
}

func (r *lineRenderer) Observe(p fulfillment.Progress) {
	defer func() { r.prev = p }()

	if p.Cursor() != r.prev.Cursor() {
		fmt.Fprintf(r.out, "step %d/%d done (%d%%)\n", r.prev.Cursor()+1, p.Len(), p.PercentComplete())
		if phase, ok := p.Current(); ok {
			r.stepHeader(p, phase)
		}
		return
	}
	if p.Failure() != nil {
		return
	}
	before, _ := r.prev.Current()
	after, ok := p.Current()
	if !ok {
		return
	}
	old := before.Statuses()
	for slot, status := range after.Statuses() {
		if slot < len(old) && old[slot] == status {
			continue
		}
		fmt.Fprintf(r.out, "  %-8s %s\n", fulfillment.SlotName(slot), status)
	}
}

func (r *lineRenderer) Finish(p fulfillment.Progress, err error) {
	switch {
	case err == nil:
		fmt.Fprintf(r.out, "complete (%d%%)\n", p.PercentComplete())
	default:
		fmt.Fprintf(r.out, "stopped at step %d/%d (%d%%): %v\n", min(p.Cursor()+1, p.Len()), p.Len(), p.PercentComplete(), err)
	}
}

const trackerUpdateFrequency = 50 * time.Millisecond

// trackerRenderer draws a go-pretty progress bar per phase, counting the
// phase's settled lanes.
type trackerRenderer struct {
	pw       progress.Writer
	trackers []*progress.Tracker
}

func newTrackerRenderer(out io.Writer, phases []fulfillment.Phase) *trackerRenderer {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(24)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(trackerUpdateFrequency)
	pw.SetSortBy(progress.SortByNone)
	pw.Style().Visibility.ETA = false

	r := &trackerRenderer{pw: pw}
	for i, phase := range phases {
		tracker := &progress.Tracker{
			Message: fmt.Sprintf("%d. %s", i+1, phaseTitle(phase.Name())),
			Total:   int64(max(phase.Populated(), 1)),
			Units:   progress.UnitsDefault,
		}
		r.trackers = append(r.trackers, tracker)
	}
	pw.AppendTrackers(r.trackers)
	return r
}

func (r *trackerRenderer) Start(p fulfillment.Progress) {
	r.Observe(p)
	go r.pw.Render()
}

func (r *trackerRenderer) Observe(p fulfillment.Progress) {
	for i, phase := range p.Phases() {
		if i >= len(r.trackers) {
			break
		}
		tracker := r.trackers[i]
		if tracker.IsDone() {
			continue
		}
		if i < p.Cursor() {
			tracker.MarkAsDone()
			continue
		}
		var settled int64
		for _, status := range phase.Statuses() {
			if status == fulfillment.LaneDone {
				settled++
			}
		}
		tracker.SetValue(settled)
	}
	if failure := p.Failure(); failure != nil && failure.Phase < len(r.trackers) {
		r.trackers[failure.Phase].MarkAsErrored()
	}
}

func (r *trackerRenderer) Finish(p fulfillment.Progress, err error) {
	r.Observe(p)
	if err != nil && p.Failure() == nil && p.Cursor() < len(r.trackers) {
		r.trackers[p.Cursor()].MarkAsErrored()
	}
	// Let the writer draw the final state before stopping it.
	time.Sleep(2 * trackerUpdateFrequency)
	r.pw.Stop()
	for r.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
