package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, "sheet status", map[string]int{"sheets": 2}); err != nil {
		t.Fatal(err)
	}
	var got JSONResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.OK || got.Command != "sheet status" || got.Error != "" {
		t.Errorf("unexpected envelope %+v", got)
	}
	if got.Version == "" {
		t.Error("version should be set")
	}
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONError(&buf, "ask", errors.New("MISTRAL_API_KEY <unset>"), ExitUserError); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `<`) {
		t.Error("HTML characters should not be escaped")
	}
	var got JSONResult
	json.Unmarshal(buf.Bytes(), &got)
	if got.OK || got.Code != ExitUserError || got.Error != "MISTRAL_API_KEY <unset>" {
		t.Errorf("unexpected envelope %+v", got)
	}
}

func TestShouldPageNonTerminalWriter(t *testing.T) {
	var buf bytes.Buffer
	if ShouldPage(&buf, strings.Repeat("line\n", 500)) {
		t.Error("a buffer is not a terminal, paging must be off")
	}
}

func TestTerminalHeight(t *testing.T) {
	t.Setenv("LINES", "")
	if got := TerminalHeight(); got != 24 {
		t.Errorf("default height = %d, want 24", got)
	}
	t.Setenv("LINES", "50")
	if got := TerminalHeight(); got != 50 {
		t.Errorf("height = %d, want 50", got)
	}
}

func TestPageFallsBackToPlainWrite(t *testing.T) {
	t.Setenv("PAGER", "sheetbot-no-such-pager")
	var buf bytes.Buffer
	if err := Page(&buf, "a\nb\n"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("got %q", buf.String())
	}
}
