package ai

import (
	"context"
	"net/http"
	"time"
)

const (
	mistralBaseURL      = "https://api.mistral.ai"
	defaultMistralModel = "mistral-large-latest"
)

// MistralProvider talks to La Plateforme. It is the default backend.
type MistralProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewMistralProvider returns a provider for model, or mistral-large-latest when empty.
func NewMistralProvider(apiKey, model string) *MistralProvider {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: mistralBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *MistralProvider) Name() string { return "mistral" }

func (p *MistralProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	return completions(ctx, p.client, p.Name(), p.baseURL, p.apiKey, modelOr(opts, p.model), system, messages, opts)
}
