// Command datamart runs the fulfillment daemon and talks to it.
//
// `datamart daemon` hosts the tracker and HTTP API in the foreground.
// `open`, `show`, `cancel`, `retry`, `list` and `status` are thin clients of
// that API. `simulate` builds and drives a pipeline locally without a daemon,
// rendering lane progress as it goes.
package main
