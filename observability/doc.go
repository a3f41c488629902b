// Package observability wires OpenTelemetry metrics and tracing for automeet.
//
// Metrics holds the instruments recorded by the rate limiter, result cache,
// work queue, streaming sessions and provider calls. Every Record method is
// safe on a nil *Metrics so components can run without telemetry.
package observability
