// Package resilience retries and short-circuits failing provider calls.
//
// Retry re-runs a call with exponential backoff while its error is
// retryable. CircuitBreaker fails calls fast once a provider has failed
// MaxFailures times in a row, then lets a trial call through after Timeout:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("whisper"))
//	result, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (*transcript.Result, error) {
//	    return resilience.Call(cb, func() (*transcript.Result, error) {
//	        return p.Transcribe(ctx, req)
//	    })
//	})
package resilience
