// Package audit records every event the bot handles as a JSON line.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Transport    string    `json:"transport"`
	Conversation string    `json:"conversation"`
	Event        string    `json:"event"` // "upload", "query" or "command"
	Input        string    `json:"input,omitempty"`
	File         string    `json:"file,omitempty"`
	Sheets       int       `json:"sheets,omitempty"`
	Actions      int       `json:"actions,omitempty"`
	Applied      int       `json:"applied,omitempty"`
	Exported     string    `json:"exported,omitempty"`
	Outcome      string    `json:"outcome"` // "ok" or "error"
	Error        string    `json:"error,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}

// Recorder accepts audit entries.
type Recorder interface {
	Log(ctx context.Context, entry Entry) error
}

// Logger appends audit entries to a file.
type Logger struct {
	FilePath string
	Enabled  bool

	mu sync.Mutex
}

// NewLogger creates a Logger. A disabled logger or an empty path makes Log a
// no-op.
func NewLogger(filePath string, enabled bool) *Logger {
	return &Logger{
		FilePath: filePath,
		Enabled:  enabled,
	}
}

// Log writes a single audit entry. Best-effort: failures never reach the
// caller.
func (l *Logger) Log(_ context.Context, entry Entry) error {
	if l == nil || !l.Enabled || l.FilePath == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.FilePath), 0o755); err != nil {
		return nil // never block the conversation
	}
	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	defer f.Close()

	entry.Input = Redact(entry.Input)
	data, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	data = append(data, '\n')
	_, _ = f.Write(data)
	return nil
}

// ReadEntries reads all audit entries from the log file.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FilterEntries returns entries matching the given criteria. Zero values
// match everything.
func FilterEntries(entries []Entry, since time.Time, event, conversation string) []Entry {
	var result []Entry
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if event != "" && e.Event != event {
			continue
		}
		if conversation != "" && e.Conversation != conversation {
			continue
		}
		result = append(result, e)
	}
	return result
}

// LogSize returns the size of the audit log in bytes, or 0 if not found.
func LogSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear truncates the audit log file.
func Clear(filePath string) error {
	if err := os.Truncate(filePath, 0); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var (
	botToken    = regexp.MustCompile(`\b\d{6,}:[A-Za-z0-9_-]{30,}\b`)
	bearerToken = regexp.MustCompile(`(?i)\bbearer\s+\S+`)
	apiKey      = regexp.MustCompile(`\bsk-(?:ant-)?[A-Za-z0-9_-]{8,}`)
)

// Redact replaces anything that looks like an API key or bot token in free
// text.
func Redact(text string) string {
	text = botToken.ReplaceAllString(text, "[REDACTED]")
	text = bearerToken.ReplaceAllString(text, "Bearer [REDACTED]")
	return apiKey.ReplaceAllString(text, "[REDACTED]")
}
