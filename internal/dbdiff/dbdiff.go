// Package dbdiff shows what a query changed in the database document.
package dbdiff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/klytics/sheetbot/internal/docstore"
)

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

type Hunk struct {
	Lines []Line `json:"lines"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// MaxDiffLines bounds the combined size of both renderings.
const MaxDiffLines = 20000

// ContextLines is how many unchanged lines surround each change.
const ContextLines = 2

// Documents diffs the indented JSON form of two documents. It reports
// truncated when the documents are too large to diff.
func Documents(before, after *docstore.Document) (hunks []Hunk, truncated bool, err error) {
	a, err := render(before)
	if err != nil {
		return nil, false, err
	}
	b, err := render(after)
	if err != nil {
		return nil, false, err
	}
	if lineCount(a)+lineCount(b) > MaxDiffLines {
		return nil, true, nil
	}
	return Group(TextDiff(a, b), ContextLines), false, nil
}

func render(doc *docstore.Document) (string, error) {
	if doc == nil {
		doc = docstore.Empty()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("could not render document: %w", err)
	}
	return buf.String(), nil
}

// TextDiff returns every line of before and after, tagged by change type.
func TextDiff(before, after string) []Line {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// Group cuts lines into hunks of changes with up to context unchanged lines
// on each side. No changes means no hunks.
func Group(lines []Line, context int) []Hunk {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.Type == LineContext {
			continue
		}
		for j := i - context; j <= i+context; j++ {
			if j >= 0 && j < len(lines) {
				keep[j] = true
			}
		}
	}

	var hunks []Hunk
	var cur *Hunk
	for i, l := range lines {
		if !keep[i] {
			cur = nil
			continue
		}
		if cur == nil {
			hunks = append(hunks, Hunk{})
			cur = &hunks[len(hunks)-1]
		}
		cur.Lines = append(cur.Lines, l)
	}
	return hunks
}

// Changed counts added and removed lines.
func Changed(hunks []Hunk) (added, removed int) {
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Write prints hunks in unified style, colored when color output is on.
func Write(w io.Writer, hunks []Hunk) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, h := range hunks {
		if len(h.Lines) == 0 {
			continue
		}
		fmt.Fprintln(w, cyan(fmt.Sprintf("@@ -%d +%d @@", startLine(h, true), startLine(h, false))))
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				fmt.Fprintln(w, green("+"+l.Text))
			case LineRemoved:
				fmt.Fprintln(w, red("-"+l.Text))
			default:
				fmt.Fprintln(w, " "+l.Text)
			}
		}
	}
}

func startLine(h Hunk, old bool) int {
	for _, l := range h.Lines {
		if old && l.OldLine > 0 {
			return l.OldLine
		}
		if !old && l.NewLine > 0 {
			return l.NewLine
		}
	}
	return 0
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
