// Package ledger persists per-transaction fulfillment records in SQLite.
//
// Each record is keyed by transaction kind and numeric reference and holds the
// drive status, the cursor of the first unfinished phase, and the last failure
// message. The tracker writes a record at every phase boundary so completed
// transactions reopen complete and interrupted ones resume at their last
// finished phase. Lane-level state is never stored.
package ledger
