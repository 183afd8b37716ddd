package ai

import (
	"context"
	"net/http"
	"time"
)

const (
	openaiBaseURL   = "https://api.openai.com"
	defaultGPTModel = "gpt-4o"
)

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = defaultGPTModel
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: openaiBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	return completions(ctx, p.client, p.Name(), p.baseURL, p.apiKey, modelOr(opts, p.model), system, messages, opts)
}
