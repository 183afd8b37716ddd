// Package ai provides a unified interface to the language-model backends the
// bot can delegate questions to.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors shared by every provider. Callers match them with errors.Is.
var (
	ErrUnauthorized = errors.New("model provider rejected the API key")
	ErrRateLimited  = errors.New("model provider rate limit reached")
	ErrUnavailable  = errors.New("model provider unavailable")
)

const maxErrorBodyBytes = 2048

// Message represents a single message in a conversation with a model.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// InferOptions configures a single inference call.
type InferOptions struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// InferResult holds the response from an inference call.
type InferResult struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
}

// Provider defines the interface that all model backends implement.
type Provider interface {
	// Infer sends a prompt and returns the complete response.
	Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error)

	// Name returns the provider identifier.
	Name() string
}

// Credentials carries the secrets and endpoints a provider may need.
type Credentials struct {
	MistralKey   string
	AnthropicKey string
	OpenAIKey    string
	OllamaHost   string
}

// Providers lists the supported provider names.
var Providers = []string{"mistral", "anthropic", "openai", "ollama"}

// NewProvider creates a provider instance based on the provider name.
func NewProvider(name, model string, creds Credentials) (Provider, error) {
	switch strings.ToLower(name) {
	case "", "mistral":
		if creds.MistralKey == "" {
			return nil, fmt.Errorf("MISTRAL_API_KEY is not set: get your API key at https://console.mistral.ai/api-keys")
		}
		return NewMistralProvider(creds.MistralKey, model), nil
	case "anthropic":
		if creds.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set: get your API key at https://console.anthropic.com/settings/keys")
		}
		return NewAnthropicProvider(creds.AnthropicKey, model), nil
	case "openai":
		if creds.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAIProvider(creds.OpenAIKey, model), nil
	case "ollama":
		host := creds.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: supported providers are %s", name, strings.Join(Providers, ", "))
	}
}

// statusError maps a non-2xx response onto the shared sentinels.
func statusError(provider string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", provider, ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", provider, ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w (HTTP %d)", provider, ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// postJSON encodes in, posts it to url and decodes a 2xx reply into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: could not encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: could not create request: %w", provider, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if err := statusError(provider, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: could not parse response: %w", provider, err)
	}
	return nil
}

// withSystem prepends system as a "system" role message when it is set.
func withSystem(system string, messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, Message{Role: "system", Content: system})
	}
	return append(out, messages...)
}

func modelOr(opts InferOptions, fallback string) string {
	if opts.Model != "" {
		return opts.Model
	}
	return fallback
}

func temperature(opts InferOptions) *float64 {
	if opts.Temperature <= 0 {
		return nil
	}
	t := opts.Temperature
	return &t
}
