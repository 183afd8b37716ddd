// Package ask provides the "sheetbot ask" one-shot query command.
package ask

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/dbdiff"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/progress"
)

// NewCommand creates the "ask" command.
func NewCommand() *cobra.Command {
	var (
		showDiff bool
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the stored data, or request an edit",
		Long: `Sends one message to the bot as if it came from a chat and prints the reply.
Edits proposed by the assistant are applied to the database. Exported sheets
are written to the exports directory.

Example:
  sheetbot ask "How many people live in Paris?"
  sheetbot ask --diff "Change Bob's city to Milan"
  sheetbot ask "/status"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = a.Config.ExportsDir
			}

			opts := a.BotOptions()
			opts.ExportsDir = ""
			b := bot.New(opts)

			before, err := a.Store.ReadAll()
			if err != nil {
				return err
			}

			conv := &capture{dir: outDir, quiet: jsonFlag, errOut: cmd.ErrOrStderr()}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := b.Dispatch(ctx, conv, strings.Join(args, " ")); err != nil {
				return err
			}

			res := result{Reply: strings.Join(conv.replies, "\n\n"), Files: conv.files}
			if showDiff {
				after, err := a.Store.ReadAll()
				if err != nil {
					return err
				}
				hunks, truncated, err := dbdiff.Documents(before, after)
				if err != nil {
					return err
				}
				res.Diff, res.DiffTruncated = hunks, truncated
			}

			if jsonFlag {
				return output.WriteJSON(cmd.OutOrStdout(), "ask", res)
			}
			printResult(cmd.OutOrStdout(), res, showDiff)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDiff, "diff", false, "Show what changed in the database")
	cmd.Flags().StringVar(&outDir, "output-dir", "", "Directory for exported files (default: exports_dir)")
	return cmd
}

type result struct {
	Reply         string        `json:"reply"`
	Files         []string      `json:"files,omitempty"`
	Diff          []dbdiff.Hunk `json:"diff,omitempty"`
	DiffTruncated bool          `json:"diff_truncated,omitempty"`
}

func printResult(w io.Writer, res result, showDiff bool) {
	fmt.Fprintln(w, res.Reply)
	for _, f := range res.Files {
		color.New(color.FgGreen).Fprintf(w, "📎 saved to %s\n", f)
	}
	if !showDiff {
		return
	}
	fmt.Fprintln(w)
	switch {
	case res.DiffTruncated:
		fmt.Fprintln(w, "(database too large to diff)")
	case len(res.Diff) == 0:
		color.New(color.FgHiBlack).Fprintln(w, "No changes to the database.")
	default:
		added, removed := dbdiff.Changed(res.Diff)
		color.New(color.Bold).Fprintf(w, "Database changes: +%d -%d lines\n", added, removed)
		dbdiff.Write(w, res.Diff)
	}
}

// capture is a one-shot conversation that collects replies and writes sent
// files to a directory.
type capture struct {
	dir    string
	quiet  bool
	errOut io.Writer

	mu      sync.Mutex
	replies []string
	files   []string
}

func (c *capture) ID() string        { return "cli" }
func (c *capture) Transport() string { return "cli" }

func (c *capture) Reply(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, text)
	return nil
}

func (c *capture) SendFile(ctx context.Context, name string, data []byte, caption string) error {
	dir := c.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	c.mu.Lock()
	c.files = append(c.files, path)
	c.mu.Unlock()
	return nil
}

func (c *capture) Working(ctx context.Context, status string) func() {
	if c.quiet {
		return func() {}
	}
	s := progress.NewSpinner(status)
	s.Out = c.errOut
	s.Start()
	return func() { s.Stop("") }
}
