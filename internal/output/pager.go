package output

import (
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// defaultHeight is used when LINES is unset.
const defaultHeight = 24

// TerminalHeight returns the row count from LINES, or 24.
func TerminalHeight() int {
	if n, err := strconv.Atoi(os.Getenv("LINES")); err == nil && n > 0 {
		return n
	}
	return defaultHeight
}

// ShouldPage reports whether content written to w is taller than the terminal.
// Writers that are not a terminal are never paged.
func ShouldPage(w io.Writer, content string) bool {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return false
	}
	return strings.Count(content, "\n") > TerminalHeight()
}

// Page writes content to w through $PAGER, falling back to "less -R" so
// colored tables survive.
func Page(w io.Writer, content string) error {
	name, args := "less", []string{"-R"}
	if p := strings.Fields(os.Getenv("PAGER")); len(p) > 0 {
		name, args = p[0], p[1:]
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		_, werr := io.WriteString(w, content)
		if werr != nil {
			return werr
		}
	}
	return nil
}
