package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/streaming"
	"github.com/kbukum/automeet/transcript"
)

// NewStreamingSession opens a session that logs and records metrics through
// the orchestrator. opts are applied after the defaults.
func (o *Orchestrator) NewStreamingSession(opts ...streaming.Option) *streaming.Session {
	base := []streaming.Option{
		streaming.WithLogger(o.log),
		streaming.WithMetrics(o.deps.Metrics),
	}
	return streaming.NewSession(append(base, opts...)...)
}

// StreamTranscribe feeds chunks to the streaming provider, aggregates its
// events in a session and returns the transcript of the final segments once
// the provider closes its event channel. Opening the stream takes one token
// from the provider's limiter.
func (o *Orchestrator) StreamTranscribe(ctx context.Context, audioFile string, chunks <-chan []byte) (*transcript.Result, error) {
	s := o.deps.Streamer
	if s == nil {
		return nil, errors.ServiceUnavailable("streaming transcription")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanStream, attribute.String("provider", s.Name()))
	result, err := o.stream(ctx, audioFile, chunks)
	observability.EndSpan(span, err)
	return result, err
}

func (o *Orchestrator) stream(ctx context.Context, audioFile string, chunks <-chan []byte) (*transcript.Result, error) {
	s := o.deps.Streamer
	limiter, err := o.limiter(s.Name())
	if err != nil {
		return nil, err
	}
	if err := limiter.Consume(ctx, 1); err != nil {
		return nil, err
	}

	events, err := s.Stream(ctx, chunks)
	if err != nil {
		return nil, callError(ctx, s.Name(), err)
	}

	session := o.NewStreamingSession()
	log := o.log.WithFields(logger.Fields(
		logger.FieldSessionID, session.ID(),
		logger.FieldProvider, s.Name(),
	))
	log.Debug("streaming session opened")

	consumeErr := session.Consume(ctx, events)
	if err := session.Close(); err != nil {
		return nil, err
	}
	if consumeErr != nil {
		log.Warn("streaming session interrupted", logger.Fields(logger.FieldError, consumeErr.Error()))
		return nil, consumeErr
	}

	result := session.ToTranscriptionResult(audioFile)
	log.Info("streaming session finished", logger.Fields("utterances", len(result.Utterances)))
	return &result, nil
}
