// Package daemon coordinates the long-running datamart process.
//
// It wires configuration, the ledger store and the fulfillment tracker into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP API the CLI and dashboards use to open, inspect, cancel
// and retry transactions.
//
// Keep orchestration logic here: pipeline semantics live in fulfillment and
// session bookkeeping in tracker, while the daemon focuses on startup,
// shutdown and transport.
package daemon
