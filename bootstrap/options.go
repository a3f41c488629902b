package bootstrap

import (
	"time"

	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/textgen"
	"github.com/kbukum/automeet/transcription"
)

// Option configures New.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	transcribers    map[string]provider.Factory[transcription.Provider]
	generators      map[string]provider.Factory[textgen.Provider]
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{
		gracefulTimeout: 30 * time.Second,
		transcribers:    make(map[string]provider.Factory[transcription.Provider]),
		generators:      make(map[string]provider.Factory[textgen.Provider]),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithTranscriptionFactory registers an extra transcription backend, or
// replaces a built-in one of the same name.
func WithTranscriptionFactory(name string, f provider.Factory[transcription.Provider]) Option {
	return func(o *appOptions) { o.transcribers[name] = f }
}

// WithTextGenerationFactory registers an extra text generation backend.
func WithTextGenerationFactory(name string, f provider.Factory[textgen.Provider]) Option {
	return func(o *appOptions) { o.generators[name] = f }
}
