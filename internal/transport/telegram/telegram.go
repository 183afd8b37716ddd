// Package telegram connects the bot to the Telegram Bot API with long
// polling. Every update is handled on its own goroutine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/tabular"
)

const (
	// DefaultPollTimeout is the long polling timeout in seconds.
	DefaultPollTimeout = 60
	typingInterval     = 4 * time.Second
)

// Handler receives chat events. *bot.Bot implements it.
type Handler interface {
	Dispatch(ctx context.Context, conv bot.Conversation, text string) error
	HandleUpload(ctx context.Context, conv bot.Conversation, filename string, data []byte) error
}

// Options configures a Transport.
type Options struct {
	Token string
	// APIEndpoint and FileEndpoint default to the public Bot API. Both are
	// format strings taking the token and the method or file path.
	APIEndpoint    string
	FileEndpoint   string
	HTTPClient     *http.Client
	MaxUploadBytes int64
	PollTimeout    int
	Logger         *slog.Logger
}

// Transport polls Telegram for updates and hands them to a Handler.
type Transport struct {
	api          *tgbotapi.BotAPI
	handler      Handler
	fileEndpoint string
	client       *http.Client
	maxUpload    int64
	pollTimeout  int
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// New authenticates against the Bot API and returns a Transport.
func New(opts Options, h Handler) (*Transport, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is not set; run 'sheetbot config set telegram.token <token>' or set TELEGRAM_BOT_TOKEN")
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := opts.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = bot.DefaultMaxUploadBytes
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Transport{
		api:          api,
		handler:      h,
		fileEndpoint: fileEndpoint,
		client:       client,
		maxUpload:    maxUpload,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}, nil
}

// Username returns the bot's Telegram username.
func (t *Transport) Username() string {
	return t.api.Self.UserName
}

// Run polls until ctx is done, then waits for in-flight updates.
func (t *Transport) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)
	t.logger.Info("telegram polling started", "bot", t.Username())

	defer t.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.logger.Info("telegram polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			t.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer t.wg.Done()
				t.handleUpdate(ctx, upd)
			}(upd)
		}
	}
}

func (t *Transport) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	conv := &conversation{t: t, chatID: msg.Chat.ID}

	switch {
	case msg.Document != nil:
		doc := msg.Document
		name := filepath.Base(doc.FileName)
		t.logger.Info("document received", "chat", msg.Chat.ID, "file", name, "size", doc.FileSize)
		if !tabular.Supported(name) {
			// Rejected by the handler without reading data.
			_ = t.handler.HandleUpload(ctx, conv, name, nil)
			return
		}
		if int64(doc.FileSize) > t.maxUpload {
			_ = conv.Reply(ctx, fmt.Sprintf("❌ The file is too large (%d MB max).", t.maxUpload>>20))
			return
		}
		data, err := t.download(ctx, doc.FileID)
		if err != nil {
			t.logger.Error("download failed", "chat", msg.Chat.ID, "file", name, "error", err)
			_ = conv.Reply(ctx, "❌ Could not download the file: "+err.Error())
			return
		}
		_ = t.handler.HandleUpload(ctx, conv, name, data)
	case strings.TrimSpace(msg.Text) != "":
		t.logger.Debug("message received", "chat", msg.Chat.ID, "command", msg.IsCommand())
		_ = t.handler.Dispatch(ctx, conv, msg.Text)
	}
}

func (t *Transport) download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}
	link := fmt.Sprintf(t.fileEndpoint, t.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if int64(len(data)) > t.maxUpload {
		return nil, fmt.Errorf("file exceeds %d MB", t.maxUpload>>20)
	}
	return data, nil
}

// conversation is one Telegram chat. A status message sent by Working is
// edited into the next reply.
type conversation struct {
	t      *Transport
	chatID int64

	mu       sync.Mutex
	statusID int
}

func (c *conversation) ID() string        { return strconv.FormatInt(c.chatID, 10) }
func (c *conversation) Transport() string { return "telegram" }

func (c *conversation) Reply(ctx context.Context, text string) error {
	c.mu.Lock()
	status := c.statusID
	c.statusID = 0
	c.mu.Unlock()

	for i, part := range SplitMessage(text, MaxMessageLength) {
		if i == 0 && status != 0 {
			if _, err := c.t.api.Send(tgbotapi.NewEditMessageText(c.chatID, status, part)); err == nil {
				continue
			}
		}
		if _, err := c.t.api.Send(tgbotapi.NewMessage(c.chatID, part)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

func (c *conversation) SendFile(ctx context.Context, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(c.chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := c.t.api.Send(doc); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}

func (c *conversation) Working(ctx context.Context, status string) func() {
	if msg, err := c.t.api.Send(tgbotapi.NewMessage(c.chatID, status)); err == nil {
		c.mu.Lock()
		c.statusID = msg.MessageID
		c.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			_, _ = c.t.api.Request(tgbotapi.NewChatAction(c.chatID, tgbotapi.ChatTyping))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
