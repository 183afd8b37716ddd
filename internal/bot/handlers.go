package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klytics/sheetbot/internal/actions"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/tabular"
)

// UploadError reports an upload that was rejected or failed. The user has
// already been told.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.File, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

var (
	errUnsupportedUpload = errors.New("unsupported file type")
	errUploadTooLarge    = errors.New("file too large")
)

// HandleUpload imports a spreadsheet. The file is parsed completely before
// anything is saved, so a bad file leaves the database untouched.
func (b *Bot) HandleUpload(ctx context.Context, conv Conversation, filename string, data []byte) error {
	start := b.now()
	name := filepath.Base(filename)
	entry := audit.Entry{Event: "upload", File: name}
	defer func() { b.record(ctx, conv, start, entry) }()

	if !tabular.Supported(name) {
		entry.Error = errUnsupportedUpload.Error()
		b.reply(ctx, conv, unsupportedText(name))
		return &UploadError{File: name, Err: errUnsupportedUpload}
	}
	if int64(len(data)) > b.maxUpload {
		entry.Error = errUploadTooLarge.Error()
		b.reply(ctx, conv, fmt.Sprintf("❌ The file is too large (%d MB max).", b.maxUpload>>20))
		return &UploadError{File: name, Err: errUploadTooLarge}
	}

	done := conv.Working(ctx, "⏳ Processing spreadsheet...")
	sheets, err := tabular.Read(name, data)
	if err == nil {
		b.keepCopy(b.uploads, name, data)
		err = b.store.SaveTabularData(sheets, name)
	}
	done()
	if err != nil {
		entry.Error = err.Error()
		b.logger.Error("upload failed", "file", name, "error", err)
		b.reply(ctx, conv, "❌ Error while processing the file: "+err.Error())
		return &UploadError{File: name, Err: err}
	}

	entry.Sheets = len(sheets)
	b.logger.Info("spreadsheet imported", "file", name, "sheets", len(sheets), "conversation", conv.ID())
	return b.reply(ctx, conv, uploadSummary(name, sheets))
}

// HandleQuery asks the assistant about the stored data, applies any edits it
// proposes and exports a sheet when asked to or when data changed.
func (b *Bot) HandleQuery(ctx context.Context, conv Conversation, text string) error {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil
	}
	start := b.now()
	entry := audit.Entry{Event: "query", Input: query}
	defer func() { b.record(ctx, conv, start, entry) }()

	decider, err := b.assistant.get()
	if err != nil {
		entry.Error = err.Error()
		return b.reply(ctx, conv, "❌ Could not initialise the assistant: "+err.Error()+
			"\nMake sure the API key is set (for example MISTRAL_API_KEY in the .env file).")
	}

	done := conv.Working(ctx, "🤔 Working on your request...")
	doc, err := b.store.ReadAll()
	if err != nil {
		done()
		entry.Error = err.Error()
		return b.reply(ctx, conv, "❌ Error: "+err.Error())
	}
	decision, err := decider.Decide(ctx, doc, query)
	if err != nil {
		done()
		entry.Error = err.Error()
		return b.reply(ctx, conv, "❌ Error while processing the request: "+err.Error())
	}

	response := decision.Response
	entry.Actions = len(decision.Actions)
	if decision.WantsUpdate() {
		rep, err := actions.Apply(b.store, decision.Actions)
		entry.Applied = len(rep.Applied)
		switch {
		case err != nil:
			entry.Error = err.Error()
			b.logger.Warn("applying actions failed", "error", err, "applied", len(rep.Applied))
			response += "\n\n⚠️ Database update failed: " + err.Error()
		case len(rep.Applied) > 0:
			response += "\n\n✅ Database updated!"
		}
		if n := len(rep.Skipped); n > 0 {
			response += fmt.Sprintf("\n\n⚠️ %d action(s) could not be understood and were skipped.", n)
			for _, u := range rep.Skipped {
				b.logger.Debug("skipped action", "name", u.Name, "sheet", u.SheetName, "reason", u.Reason)
			}
		}
	}

	if b.exportRequested(query) || decision.WantsUpdate() {
		if sheet := b.exportTarget(decision.Actions, query); sheet != "" {
			name, err := b.export(ctx, conv, sheet)
			if err != nil {
				b.logger.Error("export failed", "sheet", sheet, "error", err)
				response += "\n\n⚠️ Excel export failed: " + err.Error()
			} else {
				entry.Exported = name
			}
		}
	}
	done()

	return b.reply(ctx, conv, response)
}

// HandleCommand answers /start, /help and /status.
func (b *Bot) HandleCommand(ctx context.Context, conv Conversation, name string) error {
	start := b.now()
	entry := audit.Entry{Event: "command", Input: "/" + name}
	defer func() { b.record(ctx, conv, start, entry) }()

	switch strings.ToLower(name) {
	case "start":
		return b.reply(ctx, conv, welcomeText)
	case "help":
		return b.reply(ctx, conv, helpText)
	case "status":
		doc, err := b.store.ReadAll()
		if err != nil {
			entry.Error = err.Error()
			return b.reply(ctx, conv, "❌ Error while reading the status: "+err.Error())
		}
		return b.reply(ctx, conv, statusText(doc, b.AssistantState()))
	default:
		entry.Error = "unknown command"
		return b.reply(ctx, conv, fmt.Sprintf("Unknown command /%s. Try /help.", name))
	}
}

func (b *Bot) exportRequested(query string) bool {
	q := strings.ToLower(query)
	for _, k := range b.keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// exportTarget picks the sheet to export: the first action's sheet, then a
// sheet named in the query, then the first sheet of the document.
func (b *Bot) exportTarget(list actions.List, query string) string {
	if name := actions.FirstSheet(list); name != "" {
		return name
	}
	doc, err := b.store.ReadAll()
	if err != nil {
		return ""
	}
	q := strings.ToLower(query)
	for _, name := range doc.SheetNames() {
		if strings.Contains(q, strings.ToLower(name)) {
			return name
		}
	}
	if len(doc.Sheets) > 0 {
		return doc.Sheets[0].Name
	}
	return ""
}

func (b *Bot) export(ctx context.Context, conv Conversation, sheet string) (string, error) {
	doc, err := b.store.ReadAll()
	if err != nil {
		return "", err
	}
	rows, _ := doc.Sheet(sheet)
	data, err := tabular.WriteSheet(sheet, rows)
	if err != nil {
		return "", err
	}
	name := tabular.ExportFileName(sheet)
	b.keepCopy(b.exports, name, data)
	if err := conv.SendFile(ctx, name, data, exportCaption(sheet)); err != nil {
		return "", fmt.Errorf("could not send %s: %w", name, err)
	}
	return name, nil
}

// keepCopy writes data under dir when dir is set. Failures are logged only.
func (b *Bot) keepCopy(dir, name string, data []byte) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.logger.Warn("could not create directory", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.logger.Warn("could not keep file copy", "path", path, "error", err)
	}
}
