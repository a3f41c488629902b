package textgen

import (
	"context"

	"github.com/kbukum/automeet/provider"
)

// Provider is the interface that text-generation backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Generate returns the model's reply to the prompts in req.
	Generate(ctx context.Context, req Request) (string, error)
}

// NewRegistry creates a new provider registry for text-generation backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
