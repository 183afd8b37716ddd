package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// completionsPath is the chat endpoint shared by Mistral and OpenAI.
const completionsPath = "/v1/chat/completions"

type completionsRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// completions runs one bearer-authenticated chat completion against baseURL.
func completions(ctx context.Context, client *http.Client, provider, baseURL, apiKey, model, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	var resp completionsResponse
	err := postJSON(ctx, client, provider, baseURL+completionsPath, header, completionsRequest{
		Model:       model,
		Messages:    withSystem(system, messages),
		Temperature: temperature(opts),
		MaxTokens:   opts.MaxTokens,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s API error: %s", provider, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned an empty response", provider)
	}

	content := messageText(resp.Choices[0].Message.Content)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s returned an empty response", provider)
	}
	return &InferResult{
		Content:      content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// messageText accepts both the plain string form and the chunked array
// form of a message's content.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		if c.Type == "" || c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
