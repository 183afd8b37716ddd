package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klytics/sheetbot/internal/assistant"
	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/logging"
)

func startWatcher(t *testing.T, cfg Config, h Handler) (*Watcher, context.CancelFunc, chan error) {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w, err := New(cfg, h)
	if err != nil {
		t.Fatal(err)
	}
	w.Logger = logging.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(cancel)
	return w, cancel, done
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := New(Config{Pattern: "[", Directories: []string{t.TempDir()}}, nil); err == nil {
		t.Error("expected error for malformed glob")
	}
}

func TestDefaultDebounce(t *testing.T) {
	w, err := New(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()
	if w.Config.Debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %v", w.Config.Debounce)
	}
}

func TestStartWithoutDirectories(t *testing.T) {
	w, _ := New(Config{}, nil)
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error without directories")
	}
}

func TestMatches(t *testing.T) {
	w, _ := New(Config{}, nil)
	defer w.watcher.Close()

	for path, want := range map[string]bool{
		"/in/report.xlsx":   true,
		"/in/data.CSV":      true,
		"/in/macro.xlsm":    true,
		"/in/legacy.xls":    false,
		"/in/notes.txt":     false,
		"/in/~$report.xlsx": false,
		"/in/.hidden.csv":   false,
	} {
		if got := w.matches(path); got != want {
			t.Errorf("matches(%q) = %v, want %v", path, got, want)
		}
	}

	w.Config.Pattern = "sales_*"
	if !w.matches("/in/sales_q1.xlsx") || w.matches("/in/costs_q1.xlsx") {
		t.Error("pattern not applied")
	}
}

func TestWatcherImportsNewFile(t *testing.T) {
	dir := t.TempDir()
	called := make(chan string, 4)
	w, cancel, done := startWatcher(t, Config{Directories: []string{dir}}, func(ctx context.Context, path string) error {
		called <- path
		return nil
	})

	testFile := filepath.Join(dir, "people.csv")
	os.WriteFile(testFile, []byte("Name\nAlice\n"), 0o644)

	select {
	case path := <-called:
		if path != testFile {
			t.Errorf("expected %q, got %q", testFile, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for handler call")
	}
	time.Sleep(20 * time.Millisecond)

	if st := w.GetStatus(); !st.Running || st.EventCount != 1 || st.Errors != 0 {
		t.Errorf("unexpected status %+v", st)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start returned %v", err)
	}
	if w.GetStatus().Running {
		t.Error("watcher should report stopped")
	}
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	called := make(chan string, 10)
	_, _, _ = startWatcher(t, Config{Directories: []string{dir}, Debounce: 200 * time.Millisecond}, func(ctx context.Context, path string) error {
		called <- path
		return nil
	})

	path := filepath.Join(dir, "big.csv")
	f, _ := os.Create(path)
	for i := 0; i < 5; i++ {
		f.WriteString("a,b\n")
		f.Sync()
		time.Sleep(20 * time.Millisecond)
	}
	f.Close()

	time.Sleep(600 * time.Millisecond)
	if n := len(called); n != 1 {
		t.Errorf("expected one import after debounce, got %d", n)
	}
}

func TestWatcherSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	called := make(chan string, 1)
	startWatcher(t, Config{Directories: []string{dir}}, func(ctx context.Context, path string) error {
		called <- path
		return nil
	})

	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "~$lock.xlsx"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if len(called) != 0 {
		t.Error("handler should not be called for non-spreadsheet or temp files")
	}
}

func TestWatcherRecordsErrors(t *testing.T) {
	dir := t.TempDir()
	called := make(chan struct{}, 4)
	w, _, _ := startWatcher(t, Config{Directories: []string{dir}}, func(ctx context.Context, path string) error {
		defer func() { called <- struct{}{} }()
		return errors.New("boom")
	})

	os.WriteFile(filepath.Join(dir, "bad.xlsx"), []byte("x"), 0o644)
	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for handler call")
	}
	time.Sleep(20 * time.Millisecond)

	events := w.GetEvents()
	if len(events) != 1 || events[0].Status != "error" || events[0].Error != "boom" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestWatcherRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "team")
	os.Mkdir(sub, 0o755)
	called := make(chan string, 4)
	startWatcher(t, Config{Directories: []string{dir}, Recursive: true}, func(ctx context.Context, path string) error {
		called <- path
		return nil
	})

	want := filepath.Join(sub, "q1.csv")
	os.WriteFile(want, []byte("a\n1\n"), 0o644)
	select {
	case got := <-called:
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("file in subdirectory not imported")
	}
}

type nopDecider struct{}

func (nopDecider) Decide(ctx context.Context, doc *docstore.Document, query string) (assistant.Decision, error) {
	return assistant.Decision{}, nil
}

func TestWatcherFeedsBot(t *testing.T) {
	inbox := t.TempDir()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "database.json"))
	if err != nil {
		t.Fatal(err)
	}
	b := bot.New(bot.Options{
		Store:     store,
		Assistant: func() (bot.Decider, error) { return nopDecider{}, nil },
		Logger:    logging.Nop(),
	})
	conv := &LogConversation{Logger: logging.Nop()}
	imported := make(chan error, 4)
	startWatcher(t, Config{Directories: []string{inbox}}, func(ctx context.Context, path string) error {
		data, err := os.ReadFile(path)
		if err == nil {
			err = b.HandleUpload(ctx, conv, path, data)
		}
		imported <- err
		return err
	})

	os.WriteFile(filepath.Join(inbox, "staff.csv"), []byte("Name,Age\nAlice,30\nBob,25\n"), 0o644)
	select {
	case err := <-imported:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("file not imported")
	}

	rows, ok, err := store.GetSheet("staff")
	if err != nil || !ok || len(rows) != 2 {
		t.Fatalf("sheet not stored: ok=%v rows=%d err=%v", ok, len(rows), err)
	}
}

func TestLogConversationSendFile(t *testing.T) {
	dir := t.TempDir()
	c := &LogConversation{Logger: logging.Nop(), Dir: dir}
	if err := c.SendFile(context.Background(), "x.xlsx", []byte("PK"), "caption"); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "x.xlsx")); string(data) != "PK" {
		t.Error("file not written")
	}
	c.Working(context.Background(), "busy")()
	if c.ID() != "inbox" || c.Transport() != "watch" {
		t.Error("unexpected identity")
	}
}
