package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	auditpkg "github.com/klytics/sheetbot/internal/audit"
)

func setup(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	t.Setenv("SHEETBOT_CONFIG_DIR", dir)
	return filepath.Join(dir, "audit.log")
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := &cobra.Command{Use: "sheetbot", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("json", false, "")
	root.AddCommand(NewCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func seed(t *testing.T, path string) {
	t.Helper()
	l := auditpkg.NewLogger(path, true)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, e := range []auditpkg.Entry{
		{Transport: "telegram", Conversation: "42", Event: "upload", File: "people.xlsx", Sheets: 1, Outcome: "ok"},
		{Transport: "telegram", Conversation: "42", Event: "query", Input: "who lives in Paris?", Outcome: "ok", DurationMs: 1500},
		{Transport: "shell", Conversation: "local", Event: "command", Input: "/status", Outcome: "ok"},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		if err := l.Log(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLogTable(t *testing.T) {
	path := setup(t)
	seed(t, path)

	out := run(t, "audit", "log")
	for _, want := range []string{"3 entries", "people.xlsx", "who lives in Paris?", "1.5s", "local"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLogFilters(t *testing.T) {
	path := setup(t)
	seed(t, path)

	var entries []auditpkg.Entry
	if err := json.Unmarshal([]byte(run(t, "audit", "log", "--json", "--chat", "42", "--event", "query")), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Input != "who lives in Paris?" {
		t.Errorf("unexpected entries %+v", entries)
	}

	out := run(t, "audit", "log", "--last", "1")
	if !strings.Contains(out, "/status") || strings.Contains(out, "people.xlsx") {
		t.Errorf("--last not applied:\n%s", out)
	}
}

func TestLogEmpty(t *testing.T) {
	setup(t)
	if out := run(t, "audit", "log"); !strings.Contains(out, "No audit log entries found.") {
		t.Errorf("unexpected output %q", out)
	}
	if out := strings.TrimSpace(run(t, "audit", "log", "--json")); out != "[]" {
		t.Errorf("expected empty JSON list, got %q", out)
	}
}

func TestStatusAndClear(t *testing.T) {
	path := setup(t)
	seed(t, path)

	if out := run(t, "audit", "status"); !strings.Contains(out, "Entries:   3") {
		t.Errorf("unexpected status:\n%s", out)
	}
	run(t, "audit", "clear")
	if out := run(t, "audit", "status"); !strings.Contains(out, "empty") {
		t.Errorf("log should be empty after clear:\n%s", out)
	}
}

func TestFormatSize(t *testing.T) {
	for in, want := range map[int64]string{512: "512 B", 2048: "2.0 KB", 3 << 20: "3.0 MB"} {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
