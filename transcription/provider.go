package transcription

import (
	"context"

	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/streaming"
	"github.com/kbukum/automeet/transcript"
)

// Provider is the interface that transcription backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Transcribe sends audio for transcription and returns the result.
	Transcribe(ctx context.Context, req Request) (*transcript.Result, error)
}

// StreamingProvider is implemented by backends that recognize audio as it
// arrives. The returned channel is closed when chunks is closed and the
// backend has flushed its last event, or when ctx ends.
type StreamingProvider interface {
	provider.Provider

	Stream(ctx context.Context, chunks <-chan []byte) (<-chan streaming.Event, error)
}

// NewRegistry creates a new provider registry for transcription backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
