package bootstrap

import (
	"context"

	"github.com/kbukum/automeet/cache"
	"github.com/kbukum/automeet/encryption"
	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/media"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/server"
	"github.com/kbukum/automeet/textgen"
	"github.com/kbukum/automeet/textgen/null"
	"github.com/kbukum/automeet/textgen/openai"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/transcription/assemblyai"
	"github.com/kbukum/automeet/transcription/mock"
	"github.com/kbukum/automeet/transcription/whisper"
)

const meterName = "github.com/kbukum/automeet"

// componentLoggers are registered with the app logger so packages that
// fall back to logger.Get share its output and per-component levels.
var componentLoggers = []string{
	"cache", "component", "media", "orchestrator", "ratelimit", "sse", "streaming", "workqueue",
}

// initTelemetry installs the OTLP meter and tracer providers and registers
// their shutdown as stop hooks.
func (a *App) initTelemetry(ctx context.Context) error {
	if !a.Cfg.Telemetry.Enabled {
		return nil
	}
	mp, err := observability.InitMeter(ctx, a.Cfg.Meter())
	if err != nil {
		return errors.ConfigInvalid("telemetry", err.Error()).WithCause(err)
	}
	a.OnStop(mp.Shutdown)

	tp, err := observability.InitTracer(ctx, a.Cfg.Tracer())
	if err != nil {
		return errors.ConfigInvalid("telemetry", err.Error()).WithCause(err)
	}
	a.OnStop(tp.Shutdown)

	a.Metrics, err = observability.NewMetrics(observability.Meter(meterName))
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

// newCache builds the transcription result cache backed by a file store,
// or returns nil when caching is disabled.
func (a *App) newCache() (*cache.Cache[transcript.Result], error) {
	cc := a.Cfg.Cache
	if !cc.Enabled {
		return nil, nil
	}
	var opts []cache.FileStoreOption
	if cc.EncryptionKey != "" {
		c, err := encryption.New(cc.EncryptionKey, encryption.Algorithm(cc.EncryptionAlgorithm))
		if err != nil {
			return nil, errors.ConfigInvalid("cache.encryption_key", err.Error()).WithCause(err)
		}
		opts = append(opts, cache.WithSealer(c))
		a.Logger.Info("cache encryption enabled", logger.Fields("algorithm", string(c.Algorithm())))
	}
	store, err := cache.NewFileStore[transcript.Result](cc.Dir, opts...)
	if err != nil {
		return nil, errors.ConfigInvalid("cache.dir", err.Error()).WithCause(err)
	}
	return cache.New[transcript.Result](cc.TTL,
		cache.WithName("transcriptions"),
		cache.WithStore[transcript.Result](store),
		cache.WithLogger(logger.Get("cache")),
		cache.WithMetrics(a.Metrics),
	)
}

// newExtractor returns the ffmpeg audio extractor, or nil when media
// extraction is disabled.
func (a *App) newExtractor(ctx context.Context) orchestrator.AudioExtractor {
	if !a.Cfg.Media.Enabled {
		return nil
	}
	x := media.NewExtractor(a.Cfg.Media.Config, logger.Get("media"))
	if !x.IsAvailable(ctx) {
		a.Logger.Warn("ffmpeg not found, video inputs will fail", logger.Fields("ffmpeg", a.Cfg.Media.FFmpeg))
	}
	return x
}

// publishJob streams a job update to its event subscribers.
func (a *App) publishJob(job orchestrator.Job) {
	if err := server.PublishJob(a.Events, job); err != nil {
		a.Logger.Warn("failed to publish job event", logger.Fields(logger.FieldJobID, job.ID, logger.FieldError, err.Error()))
	}
}

// providerSet holds the resolved backends.
type providerSet struct {
	transcriber transcription.Provider
	streamer    transcription.StreamingProvider
	generator   textgen.Provider
}

// resolveProviders registers the built-in backends plus any supplied by
// options, then resolves the configured names.
func (a *App) resolveProviders(o *appOptions) (providerSet, error) {
	pc := a.Cfg.Providers

	transcribers := transcription.NewRegistry()
	transcribers.RegisterFactory(mock.ProviderName, mock.Factory())
	transcribers.RegisterFactory(whisper.ProviderName, whisper.Factory())
	transcribers.RegisterFactory(assemblyai.ProviderName, assemblyai.Factory())
	for name, f := range o.transcribers {
		transcribers.RegisterFactory(name, f)
	}

	generators := textgen.NewRegistry()
	generators.RegisterFactory(null.ProviderName, null.Factory())
	generators.RegisterFactory(openai.ProviderName, openai.Factory())
	for name, f := range o.generators {
		generators.RegisterFactory(name, f)
	}

	var set providerSet
	var err error
	if set.transcriber, err = transcribers.Resolve(pc.Transcription, pc.For(pc.Transcription)); err != nil {
		return set, err
	}
	if pc.TextGeneration != "" {
		if set.generator, err = generators.Resolve(pc.TextGeneration, pc.For(pc.TextGeneration)); err != nil {
			return set, err
		}
	}
	if pc.Streaming != "" {
		p, err := transcribers.Resolve(pc.Streaming, pc.For(pc.Streaming))
		if err != nil {
			return set, err
		}
		sp, ok := p.(transcription.StreamingProvider)
		if !ok {
			return set, errors.ConfigInvalid("providers.streaming", pc.Streaming+" does not support streaming")
		}
		set.streamer = sp
	}

	closed := make(map[string]bool)
	for _, p := range []provider.Provider{set.transcriber, set.generator, set.streamer} {
		c, ok := p.(provider.Closeable)
		if !ok || closed[p.Name()] {
			continue
		}
		closed[p.Name()] = true
		a.OnStop(c.Close)
	}

	a.Logger.Info("providers resolved", logger.Fields(
		"transcription", pc.Transcription,
		"text_generation", pc.TextGeneration,
		"streaming", pc.Streaming,
	))
	return set, nil
}
