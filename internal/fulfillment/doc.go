// Package fulfillment models and drives the staged progress of a marketplace
// transaction.
//
// A pipeline is an ordered list of phases. Each phase holds a fixed set of lane
// slots; a lane either carries a Task or is permanently not applicable. Build
// produces the phase list for a transaction kind (dataset listing or query
// order) and Drive advances a Progress record phase by phase, running the
// lanes of the current phase concurrently and publishing an immutable snapshot
// to the observer at every lane transition and phase advance.
//
// Snapshots are values: every transition yields a new Progress and previously
// published snapshots never change. The observer is always invoked from the
// goroutine that called Drive, never concurrently with itself.
//
// Lane work is abstract. The reference pipelines use Delay, a jittered timer
// standing in for encryption, chain submission, upload and remote compute, but
// any Task implementation can be substituted without touching the driver.
package fulfillment
