// Package app builds the long-lived pieces every command needs from the
// loaded configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/assistant"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/logging"
)

// Overrides are command-line values that win over the configuration.
type Overrides struct {
	DBPath   string
	Provider string
	Model    string
	Verbose  bool
	JSON     bool
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// App holds the configuration and the shared store, logger and audit log.
type App struct {
	Config *config.Config
	Store  *docstore.Store
	Logger *slog.Logger
	Audit  *audit.Logger
}

// Load reads the configuration, applies overrides and opens the database.
// A corrupt database file is an error here rather than on the first event.
func Load(o Overrides) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, o)
}

// New builds an App from an already loaded configuration.
func New(cfg *config.Config, o Overrides) (*App, error) {
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.Provider != "" {
		cfg.Provider = o.Provider
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}

	w := o.LogOutput
	if w == nil {
		w = os.Stderr
	}
	logger := logging.New(w, logging.Options{Verbose: o.Verbose, JSON: o.JSON})

	store, err := docstore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	logger.Debug("database opened", "path", store.Path())

	return &App{
		Config: cfg,
		Store:  store,
		Logger: logger,
		Audit:  audit.NewLogger(AuditPath(cfg), cfg.Audit.Enabled),
	}, nil
}

// AuditPath returns the configured audit log path, defaulting to audit.log
// in the configuration directory.
func AuditPath(cfg *config.Config) string {
	if cfg != nil && cfg.Audit.Path != "" {
		return cfg.Audit.Path
	}
	return filepath.Join(config.Dir(), "audit.log")
}

// Credentials maps the configured keys onto provider credentials.
func Credentials(cfg *config.Config) ai.Credentials {
	return ai.Credentials{
		MistralKey:   cfg.APIKeys.Mistral,
		AnthropicKey: cfg.APIKeys.Anthropic,
		OpenAIKey:    cfg.APIKeys.OpenAI,
		OllamaHost:   cfg.Ollama.Host,
	}
}

// NewAssistant constructs the configured provider wrapped in the assistant
// client. It is the bot's lazy assistant factory.
func (a *App) NewAssistant() (bot.Decider, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *App) newClient() (*assistant.Client, error) {
	cfg := a.Config
	p, err := ai.NewProvider(cfg.Provider, cfg.Model, Credentials(cfg))
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("assistant ready", "provider", p.Name(), "model", cfg.Model)
	return assistant.New(p, assistant.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Retry:       retryPolicy(cfg),
		Logger:      a.Logger,
	}), nil
}

// retryPolicy maps assistant.retries, the number of extra attempts after the
// first, onto the total attempt count the retrying provider expects.
func retryPolicy(cfg *config.Config) ai.RetryPolicy {
	return ai.RetryPolicy{
		Attempts: max(cfg.Assistant.Retries, 0) + 1,
		Timeout:  cfg.Assistant.Timeout,
	}
}

// BotOptions returns orchestrator options filled from the configuration.
// Callers adjust them per transport before calling bot.New.
func (a *App) BotOptions() bot.Options {
	cfg := a.Config
	var maxUpload int64
	if cfg.MaxUploadMB > 0 {
		maxUpload = int64(cfg.MaxUploadMB) << 20
	}
	return bot.Options{
		Store:          a.Store,
		Assistant:      a.NewAssistant,
		ExportKeywords: cfg.ExportKeywords,
		ExportsDir:     cfg.ExportsDir,
		UploadsDir:     cfg.UploadsDir,
		MaxUploadBytes: maxUpload,
		Audit:          a.Audit,
		Logger:         a.Logger,
	}
}

// NewBot returns an orchestrator with the default options.
func (a *App) NewBot() *bot.Bot {
	return bot.New(a.BotOptions())
}
