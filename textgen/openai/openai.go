// Package openai implements textgen.Provider against an OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/provider"
	"github.com/kbukum/automeet/textgen"
	"github.com/kbukum/automeet/version"
)

const (
	// ProviderName is the registered name for the OpenAI provider.
	ProviderName = "openai"

	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-2024-08-06"
	defaultTemperature = 0.7
	defaultTimeout     = 120 * time.Second
)

// Config holds configuration for the OpenAI provider.
type Config struct {
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	APIKey      string        `mapstructure:"api_key" json:"-"`
	Model       string        `mapstructure:"model" json:"model"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
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
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Provider implements textgen.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new OpenAI provider.
func NewProvider(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Factory returns a provider.Factory that creates OpenAI providers from a
// generic config map.
func Factory() provider.Factory[textgen.Provider] {
	return func(cfg map[string]any) (textgen.Provider, error) {
		var oc Config
		if err := provider.DecodeSettings("providers.openai", cfg, &oc); err != nil {
			return nil, err
		}
		return NewProvider(oc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(context.Context) bool { return p.cfg.APIKey != "" }

// Close drops idle HTTP connections.
func (p *Provider) Close(context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []textgen.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message textgen.Message `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompts as a chat completion and returns the first
// choice's content.
func (p *Provider) Generate(ctx context.Context, req textgen.Request) (string, error) {
	if !p.IsAvailable(ctx) {
		err := errors.ServiceUnavailable("openai provider (no API key)")
		err.Retryable = false
		return "", err
	}

	body := chatRequest{
		Model:       p.cfg.Model,
		Messages:    req.Messages(),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.Temperature != 0 {
		body.Temperature = req.Temperature
	}
	if req.MaxTokens != 0 {
		body.MaxTokens = req.MaxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Internal(fmt.Errorf("encode chat request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Cancelled("openai generation", ctx.Err())
		}
		return "", errors.ProviderError(ProviderName, fmt.Errorf("openai request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("openai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", errors.RateLimited(ProviderName).WithCause(cause)
		}
		appErr := errors.ProviderError(ProviderName, cause).WithDetail("status", resp.StatusCode)
		if resp.StatusCode < 500 {
			appErr.Retryable = false
		}
		return "", appErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.ProviderError(ProviderName, fmt.Errorf("decode chat response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", errors.ProviderError(ProviderName, fmt.Errorf("response contained no choices"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
