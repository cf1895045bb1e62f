// Package services defines shared utilities consumed by the tracker, the
// daemon API and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp transaction identifiers, phase and lane names,
//     session and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent ledger statuses and HTTP responses.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
