// Package bot routes chat events to the document store, the spreadsheet
// adapter and the model assistant, and turns every outcome into chat text.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/klytics/sheetbot/internal/actions"
	"github.com/klytics/sheetbot/internal/assistant"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/docstore"
)

// DefaultMaxUploadBytes matches the Telegram Bot API download limit.
const DefaultMaxUploadBytes = 20 << 20

// DefaultExportKeywords trigger an export when found in a query.
var DefaultExportKeywords = []string{
	"export", "excel", "download", "send file", "give file",
	"экспорт", "экспортировать", "скачать", "выгрузить", "отправь файл", "дай файл",
}

// Conversation is one chat the bot talks to. Transports implement it.
type Conversation interface {
	ID() string
	Transport() string
	Reply(ctx context.Context, text string) error
	SendFile(ctx context.Context, name string, data []byte, caption string) error
	// Working signals that a slow step started. The returned func ends it.
	Working(ctx context.Context, status string) (done func())
}

// Store is the subset of *docstore.Store the bot needs.
type Store interface {
	actions.Target
	ReadAll() (*docstore.Document, error)
	SaveTabularData(sheets []docstore.Sheet, source string) error
}

// Decider answers a query about a document.
type Decider interface {
	Decide(ctx context.Context, doc *docstore.Document, query string) (assistant.Decision, error)
}

// AssistantFactory constructs the Decider on first use.
type AssistantFactory func() (Decider, error)

// Options configures a Bot.
type Options struct {
	Store          Store
	Assistant      AssistantFactory
	ExportKeywords []string
	// ExportsDir keeps a copy of every exported file when set.
	ExportsDir string
	// UploadsDir keeps a copy of every uploaded file when set.
	UploadsDir     string
	MaxUploadBytes int64
	Audit          audit.Recorder
	Logger         *slog.Logger
	Now            func() time.Time
}

// Bot handles uploads, queries and commands for any number of conversations.
type Bot struct {
	store     Store
	assistant *lazyAssistant
	keywords  []string
	exports   string
	uploads   string
	maxUpload int64
	audit     audit.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Bot. Store and Assistant are required.
func New(opts Options) *Bot {
	keywords := opts.ExportKeywords
	if len(keywords) == 0 {
		keywords = DefaultExportKeywords
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Bot{
		store:     opts.Store,
		assistant: newLazyAssistant(opts.Assistant),
		keywords:  lower,
		exports:   opts.ExportsDir,
		uploads:   opts.UploadsDir,
		maxUpload: maxUpload,
		audit:     opts.Audit,
		logger:    logger,
		now:       now,
	}
}

// Dispatch routes a text message: "/cmd" and "/cmd@botname" go to
// HandleCommand, anything else to HandleQuery.
func (b *Bot) Dispatch(ctx context.Context, conv Conversation, text string) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		name := strings.Fields(trimmed)[0][1:]
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}
		return b.HandleCommand(ctx, conv, name)
	}
	return b.HandleQuery(ctx, conv, text)
}

// AssistantState reports the lazy assistant's state for status output.
func (b *Bot) AssistantState() string {
	return b.assistant.State().String()
}

func (b *Bot) record(ctx context.Context, conv Conversation, start time.Time, e audit.Entry) {
	if b.audit == nil {
		return
	}
	e.Timestamp = start
	e.Transport = conv.Transport()
	e.Conversation = conv.ID()
	e.DurationMs = b.now().Sub(start).Milliseconds()
	if e.Outcome == "" {
		e.Outcome = "ok"
		if e.Error != "" {
			e.Outcome = "error"
		}
	}
	_ = b.audit.Log(ctx, e)
}

func (b *Bot) reply(ctx context.Context, conv Conversation, text string) error {
	if err := conv.Reply(ctx, text); err != nil {
		b.logger.Warn("reply failed", "transport", conv.Transport(), "conversation", conv.ID(), "error", err)
		return err
	}
	return nil
}
