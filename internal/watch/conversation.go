package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// LogConversation is the bot conversation of a watched inbox. Replies go to
// the log and files are written to Dir.
type LogConversation struct {
	Logger *slog.Logger
	Dir    string
}

func (c *LogConversation) ID() string        { return "inbox" }
func (c *LogConversation) Transport() string { return "watch" }

func (c *LogConversation) Reply(ctx context.Context, text string) error {
	c.Logger.Info("bot reply", "text", text)
	return nil
}

func (c *LogConversation) SendFile(ctx context.Context, name string, data []byte, caption string) error {
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	c.Logger.Info("file written", "path", path, "caption", caption)
	return nil
}

func (c *LogConversation) Working(ctx context.Context, status string) func() {
	c.Logger.Debug(status)
	return func() {}
}
