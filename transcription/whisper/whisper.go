// Package whisper implements transcription.Provider against an
// OpenAI-compatible /audio/transcriptions endpoint.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/version"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "whisper-1"
	defaultLanguage = "pt"
	defaultTimeout  = 120 * time.Second
	responseFormat  = "verbose_json"
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	APIKey      string        `mapstructure:"api_key" json:"-"`
	Model       string        `mapstructure:"model" json:"model"`
	Language    string        `mapstructure:"language" json:"language,omitempty"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Provider implements transcription.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory returns a provider.Factory that creates Whisper providers from a
// generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		var wc Config
		if err := provider.DecodeSettings("providers.whisper", cfg, &wc); err != nil {
			return nil, err
		}
		return NewProvider(wc), nil
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

// Transcribe uploads the audio file and converts the verbose JSON response
// into a transcript. Whisper does not attribute speakers, so every
// utterance is labelled with the default speaker.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcript.Result, error) {
	if !p.IsAvailable(ctx) {
		err := errors.ServiceUnavailable("whisper provider (no API key)")
		err.Retryable = false
		return nil, err
	}

	body, contentType, err := p.encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled("whisper transcription", ctx.Err())
		}
		return nil, errors.ProviderError(ProviderName, fmt.Errorf("whisper request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.ProviderError(ProviderName, fmt.Errorf("decode whisper response: %w", err))
	}
	r := toResult(&result, req.AudioPath)
	return &r, nil
}

func (p *Provider) encode(req transcription.Request) (io.Reader, string, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errors.NotFound("audio file", req.AudioPath)
		}
		return nil, "", errors.InvalidInput("audio_path", err.Error())
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", errors.Internal(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", errors.Internal(fmt.Errorf("write audio data: %w", err))
	}
	_ = writer.WriteField("model", model)
	_ = writer.WriteField("response_format", responseFormat)
	_ = writer.WriteField("temperature", strconv.FormatFloat(p.cfg.Temperature, 'f', -1, 64))
	if lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Internal(fmt.Errorf("close multipart body: %w", err))
	}
	return &buf, writer.FormDataContentType(), nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("whisper error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.RateLimited(ProviderName).WithCause(cause)
	}
	appErr := errors.ProviderError(ProviderName, cause).WithDetail("status", resp.StatusCode)
	if resp.StatusCode < 500 {
		appErr.Retryable = false
	}
	return appErr
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func toResult(resp *whisperResponse, audioFile string) transcript.Result {
	var utterances []transcript.Utterance
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		utterances = append(utterances, transcript.Utterance{
			Speaker: transcript.Ptr(transcript.DefaultSpeaker),
			Text:    text,
			Start:   transcript.Ptr(seg.Start),
			End:     transcript.Ptr(seg.End),
		})
	}
	if len(resp.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		utterances = append(utterances, transcript.Utterance{
			Speaker: transcript.Ptr(transcript.DefaultSpeaker),
			Text:    strings.TrimSpace(resp.Text),
		})
	}
	if utterances == nil {
		utterances = []transcript.Utterance{}
	}

	return transcript.Result{
		Utterances: utterances,
		Text:       strings.TrimSpace(resp.Text),
		AudioFile:  audioFile,
		Language:   resp.Language,
	}
}
