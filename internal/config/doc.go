// Package config loads, normalizes, and validates datamart configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DATAMART_API_BIND. The Config type centralizes every knob the daemon and CLI
// need, from the ledger directory to the simulated lane timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
