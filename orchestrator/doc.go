// Package orchestrator ties the transcription and text-generation providers
// to the shared rate limiters, the result cache and the background work
// queue.
//
// Every provider call goes through a middleware chain that logs, measures,
// traces and then waits on the provider's named limiter. Transcriptions are
// cached by audio file fingerprint and request settings; only successful
// calls are stored. Submit runs a transcription as an asynchronous job on the
// work queue.
package orchestrator
