package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNewWithEnvDisable(t *testing.T) {
	t.Setenv("SHEETBOT_NO_PROGRESS", "1")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SHEETBOT_NO_PROGRESS=1")
	}
	if NewSpinner("test").Enabled {
		t.Error("expected spinner to be disabled with SHEETBOT_NO_PROGRESS=1")
	}
}

func TestNewWithJSONDisable(t *testing.T) {
	t.Setenv("SHEETBOT_JSON", "true")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SHEETBOT_JSON=true")
	}
}

func TestBarIncrementCapped(t *testing.T) {
	bar := &Bar{Total: 2, Width: 40}
	bar.Increment("a")
	bar.Increment("b")
	bar.Increment("c")
	if bar.Current != 2 {
		t.Errorf("expected current capped at 2, got %d", bar.Current)
	}
}

func TestBarRender(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 4, Width: 8, Label: "Importing", Enabled: true, Out: &buf}
	bar.Increment("people.xlsx")
	bar.Increment("cities.csv")
	bar.Finish("2 files imported")

	out := buf.String()
	if !strings.Contains(out, "Importing [====    ] 2/4  cities.csv") {
		t.Errorf("unexpected bar output %q", out)
	}
	if !strings.HasSuffix(out, "✓ 2 files imported\n") {
		t.Errorf("missing summary line in %q", out)
	}
}

func TestDisabledBarDoesNotWrite(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 10, Width: 40, Out: &buf}
	bar.Increment("test")
	bar.Finish("done")
	if buf.Len() != 0 {
		t.Errorf("disabled bar wrote %q", buf.String())
	}
}

func TestSpinnerStartStop(t *testing.T) {
	var buf syncBuffer
	s := &Spinner{Label: "Thinking", Enabled: true, Out: &buf}
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop("done")
	s.Stop("again")

	out := buf.String()
	if !strings.Contains(out, "Thinking") {
		t.Errorf("expected spinner frames, got %q", out)
	}
	if strings.Count(out, "✓") != 1 {
		t.Errorf("Stop should print once, got %q", out)
	}
}

func TestSpinnerStopWithoutResultClearsLine(t *testing.T) {
	var buf syncBuffer
	s := &Spinner{Label: "x", Enabled: true, Out: &buf}
	s.Start()
	s.Stop("")
	if strings.Contains(buf.String(), "✓") {
		t.Errorf("empty result should only clear the line, got %q", buf.String())
	}
}

func TestSpinnerDisabled(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Label: "x", Out: &buf}
	s.Start()
	s.Stop("done")
	if buf.Len() != 0 {
		t.Errorf("disabled spinner wrote %q", buf.String())
	}
}
