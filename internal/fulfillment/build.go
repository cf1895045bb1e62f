package fulfillment

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Phase names of the reference pipelines.
const (
	PhaseEncryptDataset = "encrypt dataset"
	PhaseSubmitOnChain  = "submit on-chain"
	PhaseUploadData     = "upload data"
	PhaseEncryptQuery   = "encrypt query"
	PhaseUploadQuery    = "upload query"
	PhasePrepareDataset = "prepare dataset"
	PhaseSellerReview   = "await seller review"
	PhaseRunComputation = "run computation"
	PhaseEncryptResult  = "encrypt result"
)

const (
	DefaultTimeUnit   = 100 * time.Millisecond
	DefaultJitter     = 0.1
	DefaultChainTime  = 5
	DefaultReviewTime = 30
)

// Timing parameterizes the simulated lane durations. A lane of base b time
// units waits floor(b * Unit * (1 + r * Jitter)) where r is drawn from Rand
// in [0, 1) when the pipeline is built.
type Timing struct {
	Unit       time.Duration
	Jitter     float64
	ChainTime  float64
	ReviewTime float64
	Rand       func() float64
}

// DefaultTiming returns the reference durations.
func DefaultTiming() Timing {
	return Timing{
		Unit:       DefaultTimeUnit,
		Jitter:     DefaultJitter,
		ChainTime:  DefaultChainTime,
		ReviewTime: DefaultReviewTime,
		Rand:       rand.Float64,
	}
}

func (t Timing) normalized() Timing {
	def := DefaultTiming()
	if t.Unit < 0 {
		t.Unit = 0
	}
	if t.Jitter < 0 {
		t.Jitter = 0
	}
	if t.ChainTime <= 0 {
		t.ChainTime = def.ChainTime
	}
	if t.ReviewTime <= 0 {
		t.ReviewTime = def.ReviewTime
	}
	if t.Rand == nil {
		t.Rand = def.Rand
	}
	return t
}

// Delay returns the jittered duration for base time units.
func (t Timing) Delay(base float64) time.Duration {
	t = t.normalized()
	d := time.Duration(math.Floor(base * float64(t.Unit) * (1 + t.Rand()*t.Jitter)))
	if d >= time.Millisecond {
		d = d.Truncate(time.Millisecond)
	}
	return d
}

// Delay is a simulated task that waits for its duration.
type Delay time.Duration

func (d Delay) Run(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Builder constructs reference pipelines with simulated lane tasks.
type Builder struct {
	Timing Timing
}

// NewBuilder returns a builder using timing.
func NewBuilder(timing Timing) Builder {
	return Builder{Timing: timing}
}

// Build constructs the reference pipeline for kind using DefaultTiming.
func Build(kind Kind, complete bool) ([]Phase, error) {
	return NewBuilder(DefaultTiming()).Build(kind, complete)
}

// Build returns the phase list for kind. When complete is set, every populated
// lane starts done so a drive finishes without running any work.
func (b Builder) Build(kind Kind, complete bool) ([]Phase, error) {
	t := b.Timing.normalized()
	work := func(units float64) Lane {
		return Pending(Delay(t.Delay(units)))
	}
	none := Absent()

	var phases []Phase
	switch kind {
	case KindItem:
		phases = []Phase{
			NewPhase(PhaseEncryptDataset, work(5), none, none),
			NewPhase(PhaseSubmitOnChain, work(1), none, work(t.ChainTime)),
			NewPhase(PhaseUploadData, work(5), work(10), none),
		}
	case KindOrder:
		phases = []Phase{
			NewPhase(PhaseEncryptQuery, work(5), none, none),
			NewPhase(PhaseSubmitOnChain, work(1), none, work(t.ChainTime)),
			NewPhase(PhaseUploadQuery, work(5), work(10), none),
			NewPhase(PhasePrepareDataset, none, work(5), none),
			NewPhase(PhaseSellerReview, none, none, work(t.ReviewTime)),
			NewPhase(PhaseRunComputation, none, work(10), none),
			NewPhase(PhaseEncryptResult, none, work(5), none),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}

	if complete {
		for i := range phases {
			phases[i] = phases[i].completed()
		}
	}
	return phases, nil
}
