package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klytics/sheetbot/internal/bot"
)

type fakeHandler struct {
	texts   []string
	uploads map[string][]byte
}

func (h *fakeHandler) Dispatch(ctx context.Context, conv bot.Conversation, text string) error {
	h.texts = append(h.texts, text)
	done := conv.Working(ctx, "thinking")
	done()
	return conv.Reply(ctx, "answer to "+text)
}

func (h *fakeHandler) HandleUpload(ctx context.Context, conv bot.Conversation, filename string, data []byte) error {
	if h.uploads == nil {
		h.uploads = map[string][]byte{}
	}
	h.uploads[filename] = data
	return conv.Reply(ctx, "imported "+filepath.Base(filename))
}

func newTestSession(t *testing.T, h Handler) (*Session, *bytes.Buffer) {
	t.Helper()
	s := NewSession(h, "", t.TempDir())
	var out bytes.Buffer
	s.Out = &out
	s.ErrOut = &out
	return s, &out
}

func TestNewSessionDefaults(t *testing.T) {
	hist := filepath.Join(t.TempDir(), "nested", "shell_history")
	s := NewSession(&fakeHandler{}, hist, "")
	if s.DownloadDir != "." {
		t.Errorf("DownloadDir = %q", s.DownloadDir)
	}
	if _, err := os.Stat(filepath.Dir(hist)); err != nil {
		t.Errorf("history directory not created: %v", err)
	}
	if s.ID() != "local" || s.Transport() != "shell" {
		t.Errorf("unexpected identity %q/%q", s.ID(), s.Transport())
	}
}

func TestEvalDispatchesQuestions(t *testing.T) {
	h := &fakeHandler{}
	s, out := newTestSession(t, h)

	if err := s.Eval(context.Background(), "  how many rows?  "); err != nil {
		t.Fatal(err)
	}
	if err := s.Eval(context.Background(), "/status"); err != nil {
		t.Fatal(err)
	}
	if len(h.texts) != 2 || h.texts[0] != "how many rows?" || h.texts[1] != "/status" {
		t.Errorf("unexpected dispatch %v", h.texts)
	}
	if !strings.Contains(out.String(), "answer to how many rows?") {
		t.Errorf("reply not printed: %q", out.String())
	}
}

func TestEvalEmpty(t *testing.T) {
	h := &fakeHandler{}
	s, out := newTestSession(t, h)
	if err := s.Eval(context.Background(), "   "); err != nil {
		t.Fatal(err)
	}
	if len(h.texts) != 0 || out.Len() != 0 || len(s.CommandHistory) != 0 {
		t.Error("empty input should do nothing")
	}
}

func TestEvalUpload(t *testing.T) {
	h := &fakeHandler{}
	s, out := newTestSession(t, h)
	path := filepath.Join(t.TempDir(), "people.csv")
	os.WriteFile(path, []byte("Name\nAlice\n"), 0o644)

	if err := s.Eval(context.Background(), "upload "+path); err != nil {
		t.Fatal(err)
	}
	if string(h.uploads[path]) != "Name\nAlice\n" {
		t.Errorf("unexpected upload %v", h.uploads)
	}
	if !strings.Contains(out.String(), "imported people.csv") {
		t.Errorf("reply not printed: %q", out.String())
	}

	if err := s.Eval(context.Background(), "/upload "+filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for a missing file")
	}
	if err := s.Eval(context.Background(), "upload"); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestEvalExit(t *testing.T) {
	s, out := newTestSession(t, &fakeHandler{})
	s.StartTime = time.Now().Add(-90 * time.Second)
	s.Eval(context.Background(), "hello")

	err := s.Eval(context.Background(), "exit")
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}
	if !strings.Contains(out.String(), "1 messages in 1m 30s") {
		t.Errorf("unexpected summary %q", out.String())
	}
}

func TestEvalHistoryAndHelp(t *testing.T) {
	s, out := newTestSession(t, &fakeHandler{})
	s.Eval(context.Background(), "first question")
	s.Eval(context.Background(), "help")
	s.Eval(context.Background(), "history")

	text := out.String()
	if !strings.Contains(text, "upload <file>") {
		t.Error("help text missing upload")
	}
	if !strings.Contains(text, "  1  first question") || !strings.Contains(text, "  3  history") {
		t.Errorf("history not listed: %q", text)
	}
}

func TestSendFileSavesToDownloadDir(t *testing.T) {
	s, out := newTestSession(t, &fakeHandler{})
	if err := s.SendFile(context.Background(), "People_export.xlsx", []byte("PK"), "📊 Exported"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(s.DownloadDir, "People_export.xlsx"))
	if err != nil || string(data) != "PK" {
		t.Fatalf("file not saved: %v", err)
	}
	if !strings.Contains(out.String(), "saved to") {
		t.Errorf("save not reported: %q", out.String())
	}
}

func TestCompleteTopLevel(t *testing.T) {
	s, _ := newTestSession(t, &fakeHandler{})
	if got := s.Complete("up"); len(got) != 1 || got[0] != "upload" {
		t.Errorf("expected [upload], got %v", got)
	}
	if got := s.Complete("/s"); len(got) != 2 {
		t.Errorf("expected /start and /status, got %v", got)
	}
	if got := s.Complete(""); len(got) != len(s.KnownCommands) {
		t.Errorf("empty input should list every command, got %v", got)
	}
	if got := s.Complete("zzz "); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestCompleteUploadPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xlsx", "b.csv", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)

	s, _ := newTestSession(t, &fakeHandler{})
	got := s.Complete("upload " + dir + "/")
	want := []string{dir + "/a.xlsx", dir + "/b.csv", dir + "/sub/"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}

	got = completeUploadLine("upload " + dir + "/b")
	if len(got) != 1 || got[0] != dir+"/b.csv" {
		t.Errorf("prefix completion = %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{5 * time.Minute, "5m 0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
