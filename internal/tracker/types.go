package tracker

import (
	"fmt"
	"time"

	"datamart/internal/fulfillment"
	"datamart/internal/ledger"
)

// Key identifies a transaction.
type Key struct {
	Kind fulfillment.Kind
	Ref  int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.Ref)
}

// PipelineSource builds the phase list for a transaction. fulfillment.Builder
// satisfies it.
type PipelineSource interface {
	Build(kind fulfillment.Kind, complete bool) ([]fulfillment.Phase, error)
}

// View is a read-only copy of a session.
type View struct {
	Key
	SessionID  string
	Status     ledger.Status
	Progress   fulfillment.Progress
	Error      string
	Live       bool
	StartedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// StatusSummary represents lightweight tracker diagnostics.
type StatusSummary struct {
	Running     bool
	Sessions    int
	Active      int
	LastError   string
	LastSession *View
	LedgerStats map[ledger.Status]int
}
