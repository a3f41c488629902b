// Package mock provides a deterministic transcription backend that needs no
// external API. Output depends only on the audio file size and the request
// settings, which makes it suitable for tests and demos.
package mock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/streaming"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
)

// ProviderName is the registered name for the mock provider.
const ProviderName = "mock"

// SamplePhrases is the text the mock cycles through.
var SamplePhrases = []string{
	"Hello, how are you?",
	"We are testing the transcription system.",
	"This is an example of an automatically generated transcript.",
	"The provider registry lets us add new transcription backends.",
	"Supporting several backends makes the system more flexible.",
	"We can pick a backend based on what the meeting needs.",
	"This is a demonstration of the simulated transcription service.",
	"No external API is needed to try the system.",
	"The architecture makes extension straightforward.",
	"Thanks for trying this transcription service.",
}

const (
	bytesPerSecond     = 50000
	minDurationSeconds = 30.0
	secondsPerPhrase   = 10.0
)

// Config tunes the mock.
type Config struct {
	// Delay simulates processing time per call.
	Delay time.Duration `mapstructure:"delay" json:"delay"`
}

// Provider implements transcription.Provider and
// transcription.StreamingProvider.
type Provider struct {
	cfg   Config
	calls atomic.Int64
}

// NewProvider creates a mock provider.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Factory returns a provider.Factory for the mock backend.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		var mc Config
		if err := provider.DecodeSettings("providers.mock", cfg, &mc); err != nil {
			return nil, err
		}
		return NewProvider(mc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable always reports true.
func (p *Provider) IsAvailable(context.Context) bool { return true }

// Calls returns how many transcriptions have been requested.
func (p *Provider) Calls() int64 { return p.calls.Load() }

// Transcribe returns a simulated transcript whose length follows the file
// size. With SpeakerLabels set, utterances rotate between SpeakersExpected
// speakers (two when unset).
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcript.Result, error) {
	p.calls.Add(1)

	info, err := os.Stat(req.AudioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("audio file", req.AudioPath)
		}
		return nil, errors.InvalidInput("audio_path", err.Error())
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	duration := max(minDurationSeconds, float64(info.Size())/bytesPerSecond)
	count := min(len(SamplePhrases), max(1, int(duration/secondsPerPhrase)))
	speakers := req.SpeakersExpected
	if speakers <= 0 {
		speakers = 2
	}

	step := duration / float64(count)
	utterances := make([]transcript.Utterance, 0, count)
	for i := 0; i < count; i++ {
		speaker := transcript.DefaultSpeaker
		if req.SpeakerLabels {
			speaker = fmt.Sprintf("Speaker %d", i%speakers+1)
		}
		utterances = append(utterances, transcript.Utterance{
			Speaker: transcript.Ptr(speaker),
			Text:    SamplePhrases[i],
			Start:   transcript.Ptr(float64(i) * step),
			End:     transcript.Ptr(float64(i+1) * step),
		})
	}

	r := transcript.New(req.AudioPath, utterances)
	r.ID = fmt.Sprintf("mock-%d", p.calls.Load())
	r.Language = req.Language
	return &r, nil
}

// Stream emits, for every received chunk, a partial event with the first
// half of the next phrase followed by a final event with the whole phrase.
func (p *Provider) Stream(ctx context.Context, chunks <-chan []byte) (<-chan streaming.Event, error) {
	out := make(chan streaming.Event)
	go func() {
		defer close(out)
		n := 0
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-chunks:
				if !ok {
					return
				}
				if err := p.wait(ctx); err != nil {
					return
				}
				phrase := SamplePhrases[n%len(SamplePhrases)]
				words := strings.Fields(phrase)
				partial := strings.Join(words[:(len(words)+1)/2], " ")
				start := float64(n) * secondsPerPhrase
				events := []streaming.Event{
					{Text: partial, StartTime: transcript.Ptr(start)},
					{
						Text: phrase, IsFinal: true, Confidence: transcript.Ptr(1.0),
						StartTime: transcript.Ptr(start), EndTime: transcript.Ptr(start + secondsPerPhrase),
					},
				}
				for _, e := range events {
					select {
					case out <- e:
					case <-ctx.Done():
						return
					}
				}
				n++
			}
		}
	}()
	return out, nil
}

func (p *Provider) wait(ctx context.Context) error {
	if p.cfg.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(p.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Cancelled("mock transcription", ctx.Err())
	case <-t.C:
		return nil
	}
}
