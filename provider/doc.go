// Package provider is the common base for external backends.
//
// Each capability package (transcription, textgen) defines its own interface
// embedding Provider and uses a Registry to map configured names to
// factories, resolved once at startup.
//
// Calls to a backend can be wrapped as a RequestResponse and decorated with
// middleware for rate limiting, logging, metrics and tracing:
//
//	call := provider.Chain(
//	    provider.WithLogging[Req, Resp](log),
//	    provider.WithMetrics[Req, Resp](metrics, "transcribe"),
//	    provider.WithTracing[Req, Resp](observability.SpanTranscribe),
//	    provider.WithRateLimit[Req, Resp](limiter),
//	)(provider.Func("whisper", backend.IsAvailable, backend.Transcribe))
package provider
