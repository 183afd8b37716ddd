// Package watch monitors inbox directories and imports every spreadsheet
// dropped into them.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klytics/sheetbot/internal/tabular"
)

// DefaultDebounce is how long a file must stay quiet before it is imported.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the watcher configuration.
type Config struct {
	Directories []string
	Recursive   bool
	// Pattern is an optional glob matched against the file name.
	Pattern  string
	Debounce time.Duration
}

// Event represents a file event that was detected and processed.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed", "error"
	Error     string    `json:"error,omitempty"`
}

// Handler imports one file.
type Handler func(ctx context.Context, path string) error

// Status represents the current watcher status.
type Status struct {
	Running     bool     `json:"running"`
	Directories []string `json:"directories"`
	EventCount  int      `json:"eventCount"`
	Errors      int      `json:"errors"`
}

// Watcher monitors directories for spreadsheet files and hands them to a Handler.
type Watcher struct {
	Config  Config
	Logger  *slog.Logger
	Handler Handler

	mu       sync.Mutex
	events   []Event
	running  bool
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	wg       sync.WaitGroup
}

// New creates a new Watcher with the given configuration.
func New(config Config, h Handler) (*Watcher, error) {
	if config.Pattern != "" {
		if _, err := filepath.Match(config.Pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", config.Pattern, err)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	return &Watcher{
		Config:   config,
		Logger:   slog.Default(),
		Handler:  h,
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the configured directories. It blocks until the
// context is cancelled and pending imports have finished.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.Config.Directories) == 0 {
		w.watcher.Close()
		return fmt.Errorf("no directories to watch")
	}
	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if w.Config.Recursive {
			err = w.addRecursive(absDir)
		} else {
			err = w.watcher.Add(absDir)
		}
		if err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
	}

	w.setRunning(true)
	defer w.setRunning(false)
	w.Logger.Info("watching for spreadsheets", "directories", len(w.Config.Directories), "recursive", w.Config.Recursive)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("stopping watcher")
			w.stopTimers()
			w.wg.Wait()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && w.Config.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.Logger.Warn("could not watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := event.Name
	if !w.matches(path) {
		return
	}

	op := event.Op.String()
	w.mu.Lock()
	if timer, ok := w.debounce[path]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
	}
	w.wg.Add(1)
	w.debounce[path] = time.AfterFunc(w.Config.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		w.processFile(ctx, path, op)
	})
	w.mu.Unlock()
}

// matches reports whether path is an importable, non-temporary file.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if !tabular.Supported(base) {
		return false
	}
	if w.Config.Pattern != "" {
		if ok, _ := filepath.Match(w.Config.Pattern, base); !ok {
			return false
		}
	}
	return true
}

func (w *Watcher) processFile(ctx context.Context, path, operation string) {
	if ctx.Err() != nil {
		return
	}
	evt := Event{
		Time:      time.Now(),
		Path:      path,
		Operation: operation,
		Status:    "processed",
	}
	if w.Handler != nil {
		if err := w.Handler(ctx, path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.Logger.Error("import failed", "path", path, "error", err)
		} else {
			w.Logger.Info("imported", "path", path)
		}
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.debounce, path)
	}
}

func (w *Watcher) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	errs := 0
	for _, e := range w.events {
		if e.Status == "error" {
			errs++
		}
	}
	return Status{
		Running:     w.running,
		Directories: w.Config.Directories,
		EventCount:  len(w.events),
		Errors:      errs,
	}
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
