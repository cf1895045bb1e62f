// Package notifications announces fulfillment outcomes via ntfy.
//
// NewService returns an ntfy-backed Service when a topic is configured and a
// no-op otherwise, so the tracker can always notify without checking config.
package notifications
