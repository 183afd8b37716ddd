package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOllamaModel = "llama3.1"

// OllamaProvider talks to a local Ollama server. It needs no API key.
type OllamaProvider struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaProvider(host, model string) *OllamaProvider {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (p *OllamaProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	model := modelOr(opts, p.model)
	req := ollamaRequest{Model: model, Messages: withSystem(system, messages)}
	if t := temperature(opts); t != nil || opts.MaxTokens > 0 {
		req.Options = &ollamaOptions{Temperature: t, NumPredict: opts.MaxTokens}
	}

	var resp ollamaResponse
	if err := postJSON(ctx, p.client, p.Name(), p.host+"/api/chat", nil, req, &resp); err != nil {
		var urlErr *url.Error
		if ctx.Err() == nil && errors.As(err, &urlErr) && !urlErr.Timeout() {
			return nil, fmt.Errorf("could not connect to Ollama at %s (is it running? start it with 'ollama serve'): %w", p.host, ErrUnavailable)
		}
		return nil, err
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &InferResult{
		Content:      resp.Message.Content,
		Model:        model,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}
