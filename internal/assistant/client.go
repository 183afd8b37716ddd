package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/docstore"
)

// DefaultTemperature keeps replies close to deterministic.
const DefaultTemperature = 0.3

// AdapterError reports a failed model call.
type AdapterError struct {
	Provider string
	Err      error
}

func (e *AdapterError) Error() string {
	switch {
	case errors.Is(e.Err, ai.ErrUnauthorized):
		return fmt.Sprintf("%s rejected the API key; check your configuration", e.Provider)
	case errors.Is(e.Err, ai.ErrRateLimited):
		return fmt.Sprintf("%s rate limit reached; try again in a moment", e.Provider)
	case errors.Is(e.Err, context.DeadlineExceeded):
		return fmt.Sprintf("%s did not answer in time", e.Provider)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Options configures a Client.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Retry       ai.RetryPolicy
	Logger      *slog.Logger
}

// Client asks a model provider for decisions about the document.
type Client struct {
	provider ai.Provider
	opts     Options
	logger   *slog.Logger
}

// New wraps p with the retry policy from opts and returns a Client.
func New(p ai.Provider, opts Options) *Client {
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider: ai.NewRetrying(p, opts.Retry),
		opts:     opts,
		logger:   logger,
	}
}

// Provider returns the name of the underlying provider.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Decide sends the document and query to the model and parses its reply.
// Malformed replies degrade to a plain text Decision; only provider failures
// return an error, always as *AdapterError.
func (c *Client) Decide(ctx context.Context, doc *docstore.Document, query string) (Decision, error) {
	msg, err := UserMessage(doc, query)
	if err != nil {
		return Decision{}, &AdapterError{Provider: c.provider.Name(), Err: err}
	}

	start := time.Now()
	res, err := c.provider.Infer(ctx, SystemPrompt, []ai.Message{{Role: "user", Content: msg}}, ai.InferOptions{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		c.logger.Warn("model call failed", "provider", c.provider.Name(), "error", err)
		return Decision{}, &AdapterError{Provider: c.provider.Name(), Err: err}
	}
	c.logger.Debug("model replied",
		"provider", c.provider.Name(),
		"model", res.Model,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return ParseDecision(res.Content), nil
}
