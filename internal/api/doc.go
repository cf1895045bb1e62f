// Package api defines wire-format types and converters for the daemon HTTP
// API, plus the client the CLI uses to talk to it. It translates tracker
// views and fulfillment snapshots into transport-friendly DTOs so consumers
// can render progress without importing internal types.
//
// # Key Types
//
// Transaction: one fulfillment session with its phases, lane statuses,
// cursor, integer percent and failure detail.
//
// DaemonStatus: daemon running state, lock/ledger paths and tracker summary.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Lane statuses are exposed as their short text
// form (na, wait, running, done, failed) and lanes are addressed by actor
// name (client, runtime, chain). Timestamps use RFC3339 with milliseconds.
package api
