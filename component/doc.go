// Package component defines the lifecycle contract for long-lived parts of
// automeet (work queue, cache sweeper, HTTP server) and a registry that
// starts them in order and stops them in reverse.
package component
