// Package assemblyai implements transcription.Provider against the
// AssemblyAI v2 REST API: upload the audio, create a transcript, then poll
// until it completes.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/version"
)

const (
	// ProviderName is the registered name for the AssemblyAI provider.
	ProviderName = "assemblyai"

	defaultBaseURL      = "https://api.assemblyai.com/v2"
	defaultLanguage     = "pt"
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = 3 * time.Second

	statusCompleted = "completed"
	jobStatusError  = "error"
)

// Config holds configuration for the AssemblyAI provider.
type Config struct {
	BaseURL  string `mapstructure:"base_url" json:"base_url"`
	APIKey   string `mapstructure:"api_key" json:"-"`
	Language string `mapstructure:"language" json:"language,omitempty"`
	// SpeechModel selects the backend model when a request names none.
	SpeechModel string `mapstructure:"speech_model" json:"speech_model,omitempty"`
	// Timeout bounds each HTTP request, not the whole transcription.
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Provider implements transcription.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new AssemblyAI provider.
func NewProvider(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory returns a provider.Factory that creates AssemblyAI providers from
// a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		var ac Config
		if err := provider.DecodeSettings("providers.assemblyai", cfg, &ac); err != nil {
			return nil, err
		}
		return NewProvider(ac), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.cfg.APIKey != ""
}

// Close drops idle HTTP connections.
func (p *Provider) Close(context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}

// Transcribe uploads the audio, requests a transcript and waits for it.
// Speaker labels "A", "B"... become "Speaker A", "Speaker B"...
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcript.Result, error) {
	if !p.IsAvailable(ctx) {
		err := errors.ServiceUnavailable("assemblyai provider (no API key)")
		err.Retryable = false
		return nil, err
	}

	audioURL, err := p.upload(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}

	var job transcriptResponse
	if err := p.do(ctx, http.MethodPost, "/transcript", p.jobRequest(req, audioURL), &job); err != nil {
		return nil, err
	}

	for job.Status != statusCompleted {
		if job.Status == jobStatusError {
			appErr := errors.ProviderError(ProviderName, fmt.Errorf("transcript %s failed: %s", job.ID, job.Error))
			appErr.Retryable = false
			return nil, appErr
		}
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		if err := p.do(ctx, http.MethodGet, "/transcript/"+job.ID, nil, &job); err != nil {
			return nil, err
		}
	}

	r := toResult(&job, req.AudioPath)
	return &r, nil
}

func (p *Provider) jobRequest(req transcription.Request, audioURL string) transcriptRequest {
	tr := transcriptRequest{
		AudioURL:      audioURL,
		LanguageCode:  p.cfg.Language,
		SpeechModel:   p.cfg.SpeechModel,
		Punctuate:     true,
		FormatText:    true,
		SpeakerLabels: req.SpeakerLabels,
	}
	if req.Language != "" {
		tr.LanguageCode = req.Language
	}
	if req.Model != "" {
		tr.SpeechModel = req.Model
	}
	if req.SpeakerLabels && req.SpeakersExpected > 0 {
		tr.SpeakersExpected = req.SpeakersExpected
	}
	return tr
}

// upload streams the audio file and returns the URL AssemblyAI stored it at.
func (p *Provider) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("audio file", path)
		}
		return "", errors.InvalidInput("audio_path", err.Error())
	}
	defer f.Close()

	httpReq, err := p.newRequest(ctx, http.MethodPost, "/upload", f)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := p.send(ctx, httpReq, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.ProviderError(ProviderName, fmt.Errorf("upload returned no url"))
	}
	return out.UploadURL, nil
}

func (p *Provider) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Internal(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := p.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return p.send(ctx, httpReq, out)
}

func (p *Provider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", p.cfg.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())
	return httpReq, nil
}

func (p *Provider) send(ctx context.Context, httpReq *http.Request, out any) error {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Cancelled("assemblyai transcription", ctx.Err())
		}
		return errors.ProviderError(ProviderName, fmt.Errorf("assemblyai request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ProviderError(ProviderName, fmt.Errorf("decode assemblyai response: %w", err))
	}
	return nil
}

func (p *Provider) wait(ctx context.Context) error {
	t := time.NewTimer(p.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Cancelled("assemblyai transcription", ctx.Err())
	case <-t.C:
		return nil
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("assemblyai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.RateLimited(ProviderName).WithCause(cause)
	}
	appErr := errors.ProviderError(ProviderName, cause).WithDetail("status", resp.StatusCode)
	if resp.StatusCode < 500 {
		appErr.Retryable = false
	}
	return appErr
}

// --- internal AssemblyAI API types ---

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL         string `json:"audio_url"`
	LanguageCode     string `json:"language_code,omitempty"`
	SpeechModel      string `json:"speech_model,omitempty"`
	Punctuate        bool   `json:"punctuate"`
	FormatText       bool   `json:"format_text"`
	SpeakerLabels    bool   `json:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
}

type transcriptResponse struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Text         string      `json:"text"`
	LanguageCode string      `json:"language_code"`
	Error        string      `json:"error"`
	Utterances   []utterance `json:"utterances"`
}

type utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	// Start and End are milliseconds.
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

func toResult(resp *transcriptResponse, audioFile string) transcript.Result {
	utterances := make([]transcript.Utterance, 0, len(resp.Utterances))
	for _, u := range resp.Utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		out := transcript.Utterance{Text: text, Start: seconds(u.Start), End: seconds(u.End)}
		if u.Speaker != "" {
			out.Speaker = transcript.Ptr("Speaker " + u.Speaker)
		}
		utterances = append(utterances, out)
	}
	text := strings.TrimSpace(resp.Text)
	if len(utterances) == 0 && text != "" {
		utterances = append(utterances, transcript.Utterance{
			Speaker: transcript.Ptr(transcript.DefaultSpeaker),
			Text:    text,
		})
	}

	return transcript.Result{
		ID:         resp.ID,
		Utterances: utterances,
		Text:       text,
		AudioFile:  audioFile,
		Language:   resp.LanguageCode,
	}
}

func seconds(ms *int64) *float64 {
	if ms == nil {
		return nil
	}
	return transcript.Ptr(float64(*ms) / 1000)
}
