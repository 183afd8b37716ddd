// Package shell provides the interactive sheetbot REPL. Each session is one
// local conversation with the bot.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/progress"
	"github.com/klytics/sheetbot/internal/tabular"
)

// ErrExit is returned by Eval when the user ends the session.
var ErrExit = errors.New("exit")

// Handler receives the session's messages. *bot.Bot implements it.
type Handler interface {
	Dispatch(ctx context.Context, conv bot.Conversation, text string) error
	HandleUpload(ctx context.Context, conv bot.Conversation, filename string, data []byte) error
}

// Session manages an interactive shell session.
type Session struct {
	Handler        Handler
	CommandHistory []string
	HistoryFile    string
	// DownloadDir receives files the bot sends back.
	DownloadDir string
	StartTime   time.Time
	Out         io.Writer
	ErrOut      io.Writer

	// KnownCommands is the list of words offered for completion.
	KnownCommands []string

	spinner func(label string) *progress.Spinner
}

// NewSession creates a new interactive session. Exported files land in
// downloadDir, or the working directory when it is empty.
func NewSession(h Handler, historyFile, downloadDir string) *Session {
	if historyFile != "" {
		os.MkdirAll(filepath.Dir(historyFile), 0o755)
	}
	if downloadDir == "" {
		downloadDir = "."
	}
	return &Session{
		Handler:     h,
		HistoryFile: historyFile,
		DownloadDir: downloadDir,
		StartTime:   time.Now(),
		Out:         os.Stdout,
		ErrOut:      os.Stderr,
		KnownCommands: []string{
			"upload", "help", "history", "exit", "quit",
			"/start", "/help", "/status",
		},
		spinner: progress.NewSpinner,
	}
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.CyanString("sheetbot> "),
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.Out, "sheetbot interactive shell")
	fmt.Fprintln(s.Out, "Ask about your data, 'upload <file>' to import a spreadsheet, 'exit' to quit.")
	fmt.Fprintln(s.Out)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		if err := s.Eval(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(s.ErrOut, "Error: %s\n", err)
		}
	}
	return nil
}

// Eval handles one input line. Shell words are handled locally, everything
// else goes to the bot.
func (s *Session) Eval(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	s.CommandHistory = append(s.CommandHistory, line)

	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "exit", "quit":
		elapsed := time.Since(s.StartTime)
		fmt.Fprintf(s.Out, "\nSession ended. %d messages in %s.\n",
			len(s.CommandHistory)-1, formatDuration(elapsed))
		return ErrExit
	case "help":
		s.printHelp()
		return nil
	case "history":
		for i, cmd := range s.CommandHistory {
			fmt.Fprintf(s.Out, "  %d  %s\n", i+1, cmd)
		}
		return nil
	case "upload", "/upload":
		if rest == "" {
			return fmt.Errorf("usage: upload <file>")
		}
		return s.upload(ctx, rest)
	}
	return s.Handler.Dispatch(ctx, s, line)
}

func (s *Session) upload(ctx context.Context, path string) error {
	path = strings.Trim(path, `"'`)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	err = s.Handler.HandleUpload(ctx, s, path, data)
	var ue *bot.UploadError
	if errors.As(err, &ue) {
		// Already reported through Reply.
		return nil
	}
	return err
}

// ID implements bot.Conversation.
func (s *Session) ID() string { return "local" }

// Transport implements bot.Conversation.
func (s *Session) Transport() string { return "shell" }

// Reply prints a bot message.
func (s *Session) Reply(ctx context.Context, text string) error {
	_, err := fmt.Fprintln(s.Out, text)
	return err
}

// SendFile saves a file the bot sends into DownloadDir.
func (s *Session) SendFile(ctx context.Context, name string, data []byte, caption string) error {
	if err := os.MkdirAll(s.DownloadDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.DownloadDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "%s %s\n   saved to %s\n", color.GreenString("📎"), caption, path)
	return nil
}

// Working shows a spinner until the returned func is called.
func (s *Session) Working(ctx context.Context, status string) func() {
	sp := s.spinner(status)
	sp.Start()
	return func() { sp.Stop("") }
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return s.KnownCommands
	}
	parts := strings.Fields(trimmed)
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, cmd := range s.KnownCommands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}
	if parts[0] == "upload" || parts[0] == "/upload" {
		prefix := ""
		if len(parts) > 1 {
			prefix = parts[1]
		}
		return spreadsheetFiles(prefix)
	}
	return nil
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "Shell commands:")
	fmt.Fprintln(s.Out, "  upload <file>  import a spreadsheet into the database")
	fmt.Fprintln(s.Out, "  history        show this session's input")
	fmt.Fprintln(s.Out, "  exit           leave the shell")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "Bot commands: /start, /help, /status")
	fmt.Fprintln(s.Out, "Anything else is sent to the assistant as a question.")
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		if cmd == "upload" {
			items = append(items, readline.PcItem(cmd, readline.PcItemDynamic(completeUploadLine)))
			continue
		}
		items = append(items, readline.PcItem(cmd))
	}
	return items
}

// completeUploadLine receives the whole input line from readline.
func completeUploadLine(line string) []string {
	fields := strings.Fields(line)
	prefix := ""
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		prefix = fields[len(fields)-1]
	}
	return spreadsheetFiles(prefix)
}

// spreadsheetFiles lists importable files and directories matching prefix.
func spreadsheetFiles(prefix string) []string {
	dir, base := ".", ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir, base = prefix[:i+1], prefix[:i+1]
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := base + e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case e.IsDir():
			out = append(out, name+"/")
		case tabular.Supported(name):
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
