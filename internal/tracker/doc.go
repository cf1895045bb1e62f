// Package tracker owns the live fulfillment sessions of the daemon.
//
// A session is keyed by transaction kind and numeric reference. Opening a
// session builds the pipeline for its kind, positions it according to the
// ledger (already complete, resumed at a stored phase, or fresh) and drives it
// on a background goroutine. The latest published snapshot is cached for
// readers; phase boundaries and terminal states are written to the ledger.
//
// Sessions can be canceled and retried. Stopping the manager interrupts every
// drive and leaves its record pending so the next daemon start resumes it.
package tracker
