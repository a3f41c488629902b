package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/automeet/cache"
	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/ratelimit"
	"github.com/kbukum/automeet/resilience"
	"github.com/kbukum/automeet/textgen"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/validation"
	"github.com/kbukum/automeet/workqueue"
)

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	// Transcriber is required.
	Transcriber transcription.Provider
	// Generator enables Analyze. Nil makes analysis unavailable.
	Generator textgen.Provider
	// Streamer enables StreamTranscribe. Nil makes streaming unavailable.
	Streamer transcription.StreamingProvider
	// Limiters holds the named buckets. Nil creates a private registry.
	Limiters *ratelimit.Registry
	// Extractor converts video inputs to audio. Nil sends every file to
	// the provider as is.
	Extractor AudioExtractor
	// Cache stores transcription results. Nil disables caching.
	Cache   *cache.Cache[transcript.Result]
	Logger  *logger.Logger
	Metrics *observability.Metrics
	// OnJobUpdate receives a snapshot each time a job is queued or changes
	// state. It runs on the caller's or worker's goroutine and must not block.
	OnJobUpdate func(Job)
}

// AudioExtractor pulls the audio track out of container formats the
// providers do not accept.
type AudioExtractor interface {
	Handles(path string) bool
	// Extract writes the audio to a new file the caller removes.
	Extract(ctx context.Context, path string) (string, error)
}

// TranscribeRequest is a transcription request plus orchestration flags.
type TranscribeRequest struct {
	transcription.Request
	// Force skips and replaces any cached result.
	Force bool `json:"force,omitempty"`
}

type (
	transcribeCall = provider.RequestResponse[transcription.Request, *transcript.Result]
	generateCall   = provider.RequestResponse[textgen.Request, string]
)

// Orchestrator runs transcriptions and analyses under shared rate limits.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	log      *logger.Logger
	limiters *ratelimit.Registry

	transcribe transcribeCall
	generate   generateCall

	queue *workqueue.Queue[string]

	breakers map[string]*resilience.CircuitBreaker

	jobsMu sync.RWMutex
	jobs   map[string]*Job
	now    func() time.Time

	lifeMu      sync.Mutex
	stopSweeper context.CancelFunc
}

// New wires an Orchestrator. Call Start before submitting jobs.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Transcriber == nil {
		return nil, errors.ConfigInvalid("orchestrator.transcriber", "a transcription provider is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = logger.Get("orchestrator")
	}
	limiters := deps.Limiters
	if limiters == nil {
		limiters = ratelimit.NewRegistry(ratelimit.WithLogger(log), ratelimit.WithMetrics(deps.Metrics))
	}

	o := &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		limiters: limiters,
		jobs:     make(map[string]*Job),
		now:      time.Now,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}

	t := deps.Transcriber
	limiter, err := o.limiter(t.Name())
	if err != nil {
		return nil, err
	}
	o.transcribe = provider.Chain(
		provider.WithLogging[transcription.Request, *transcript.Result](log),
		provider.WithMetrics[transcription.Request, *transcript.Result](deps.Metrics, "transcribe"),
		provider.WithTracing[transcription.Request, *transcript.Result](observability.SpanTranscribe),
		guard[transcription.Request, *transcript.Result](o, t.Name()),
		provider.WithRateLimit[transcription.Request, *transcript.Result](limiter),
	)(provider.Func(t.Name(), t.IsAvailable, t.Transcribe))

	if g := deps.Generator; g != nil {
		limiter, err := o.limiter(g.Name())
		if err != nil {
			return nil, err
		}
		o.generate = provider.Chain(
			provider.WithLogging[textgen.Request, string](log),
			provider.WithMetrics[textgen.Request, string](deps.Metrics, "generate"),
			provider.WithTracing[textgen.Request, string](observability.SpanGenerate),
			guard[textgen.Request, string](o, g.Name()),
			provider.WithRateLimit[textgen.Request, string](limiter),
		)(provider.Func(g.Name(), g.IsAvailable, g.Generate))
	}

	o.queue, err = workqueue.New(o.runJob,
		workqueue.WithName("transcription-jobs"),
		workqueue.WithBufferSize(cfg.BufferSize),
		workqueue.WithLogger(log),
		workqueue.WithMetrics(deps.Metrics),
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// limiter returns the shared bucket for a provider.
func (o *Orchestrator) limiter(name string) (*ratelimit.Limiter, error) {
	rl := o.cfg.rateLimit(name)
	return o.limiters.Get(name, rl.Capacity, rl.RefillRate)
}

// Limiters exposes the limiter registry.
func (o *Orchestrator) Limiters() *ratelimit.Registry { return o.limiters }

// prepare validates req and fills the default language.
func (o *Orchestrator) prepare(req transcription.Request) (transcription.Request, error) {
	if err := validation.Validate(req); err != nil {
		return req, err
	}
	if err := transcription.ValidateAudioPath(req.AudioPath, o.cfg.AllowedExtensions); err != nil {
		return req, err
	}
	if req.Language == "" {
		req.Language = o.cfg.Language
	}
	return req, nil
}

// cacheKey identifies a result by file content, settings and provider.
func (o *Orchestrator) cacheKey(req transcription.Request) (string, error) {
	return cache.FileFingerprint(req.AudioPath,
		req.ConfigFingerprint()+";provider="+o.deps.Transcriber.Name())
}

// Transcribe returns the transcript for req.AudioPath. A cached result is
// returned without calling the provider unless req.Force is set. Only
// successful provider calls are cached.
func (o *Orchestrator) Transcribe(ctx context.Context, req TranscribeRequest) (*transcript.Result, error) {
	r, err := o.prepare(req.Request)
	if err != nil {
		return nil, err
	}

	c := o.deps.Cache
	var key string
	if c != nil {
		if key, err = o.cacheKey(r); err != nil {
			return nil, err
		}
		if req.Force {
			c.Invalidate(key)
		} else if cached, ok := c.Get(key); ok {
			o.log.Debug("transcription served from cache", logger.Fields(
				logger.FieldCacheKey, key,
				"audio_path", r.AudioPath,
			))
			out := cached.Clone()
			return &out, nil
		}
	}

	call := r
	if x := o.deps.Extractor; x != nil && x.Handles(r.AudioPath) {
		audio, err := x.Extract(ctx, r.AudioPath)
		if err != nil {
			return nil, err
		}
		defer o.remove(audio)
		call.AudioPath = audio
	}

	result, err := o.transcribe.Execute(ctx, call)
	if err != nil {
		return nil, callError(ctx, o.transcribe.Name(), err)
	}
	if result == nil {
		return nil, errors.ProviderError(o.transcribe.Name(), fmt.Errorf("provider returned no result"))
	}
	if result.AudioFile == "" || call.AudioPath != r.AudioPath {
		result.AudioFile = r.AudioPath
	}
	if result.Language == "" {
		result.Language = r.Language
	}

	if c != nil {
		c.Set(key, result.Clone())
	}
	return result, nil
}

// remove deletes a temporary file, logging failures.
func (o *Orchestrator) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.log.Warn("failed to remove temporary file", logger.Fields("path", path, logger.FieldError, err.Error()))
	}
}

// AnalyzeRequest asks the text-generation provider about a transcript.
type AnalyzeRequest struct {
	Text         string `json:"text" validate:"required"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}

// Analyze formats result as speaker-labelled text and runs AnalyzeText on it.
func (o *Orchestrator) Analyze(ctx context.Context, result transcript.Result, systemPrompt, userTemplate string) (string, error) {
	text, err := transcript.Format(result, transcript.FormatText)
	if err != nil {
		return "", err
	}
	return o.AnalyzeText(ctx, AnalyzeRequest{Text: text, SystemPrompt: systemPrompt, UserPrompt: userTemplate})
}

// AnalyzeText renders the user template around req.Text and returns the
// generated reply. Transcripts longer than AnalysisChunkLines lines are sent
// in chunks and the replies joined by newlines.
func (o *Orchestrator) AnalyzeText(ctx context.Context, req AnalyzeRequest) (string, error) {
	if o.generate == nil {
		return "", errors.ServiceUnavailable("text generation")
	}
	if err := validation.Validate(req); err != nil {
		return "", err
	}
	system := req.SystemPrompt
	if system == "" {
		system = textgen.DefaultSystemPrompt
	}

	chunks := []string{req.Text}
	if lines := strings.Count(req.Text, "\n") + 1; lines > o.cfg.AnalysisChunkLines {
		chunks = textgen.SplitChunks(req.Text, o.cfg.AnalysisChunkSize)
		if limit := o.cfg.AnalysisMaxChunks; limit > 0 && len(chunks) > limit {
			o.log.Warn("analysis truncated", logger.Fields("chunks", len(chunks), "max_chunks", limit))
			chunks = chunks[:limit]
		}
		o.log.Info("analysing transcript in chunks", logger.Fields("lines", lines, "chunks", len(chunks)))
	}

	replies := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		reply, err := o.generate.Execute(ctx, textgen.Request{
			SystemPrompt: system,
			UserPrompt:   textgen.RenderPrompt(req.UserPrompt, chunk),
		})
		if err != nil {
			return "", callError(ctx, o.generate.Name(), err)
		}
		replies = append(replies, reply)
	}
	return strings.Join(replies, "\n"), nil
}

// callError maps a provider failure onto the error taxonomy. AppErrors pass
// through unchanged.
func callError(ctx context.Context, name string, err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Cancelled(name, ctxErr)
	}
	return errors.ProviderError(name, err)
}
