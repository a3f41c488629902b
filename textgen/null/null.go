// Package null provides a text-generation backend that generates nothing.
// It lets the pipeline run when no generation service is configured.
package null

import (
	"context"

	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/textgen"
)

// ProviderName is the registered name for the null provider.
const ProviderName = "null"

// Provider implements textgen.Provider by returning empty text.
type Provider struct{}

// NewProvider creates a null provider.
func NewProvider() *Provider { return &Provider{} }

// Factory returns a provider.Factory for the null backend.
func Factory() provider.Factory[textgen.Provider] {
	return func(map[string]any) (textgen.Provider, error) {
		return NewProvider(), nil
	}
}

// Name returns the provider name.
func (*Provider) Name() string { return ProviderName }

// IsAvailable always reports true.
func (*Provider) IsAvailable(context.Context) bool { return true }

// Generate returns "".
func (*Provider) Generate(context.Context, textgen.Request) (string, error) { return "", nil }
