// Package watch provides the "sheetbot watch" command that imports
// spreadsheets dropped into a directory.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/tabular"
	w "github.com/klytics/sheetbot/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		recursive bool
		pattern   string
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory> [directory...]",
		Short: "Import spreadsheets dropped into a directory",
		Long: `Watch directories for new or modified spreadsheets and import each one into
the database, the same way a chat upload does. Office lock files and hidden
files are ignored.

Example:
  sheetbot watch ./inbox
  sheetbot watch ./reports --recursive --pattern "sales_*"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			opts := a.BotOptions()
			opts.ExportsDir = ""
			b := bot.New(opts)
			conv := &w.LogConversation{Logger: a.Logger, Dir: a.Config.ExportsDir}

			watcher, err := w.New(w.Config{
				Directories: args,
				Recursive:   recursive,
				Pattern:     pattern,
				Debounce:    debounce,
			}, func(ctx context.Context, path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("could not read %s: %w", path, err)
				}
				return b.HandleUpload(ctx, conv, path, data)
			})
			if err != nil {
				return err
			}
			watcher.Logger = a.Logger

			jsonOut, _ := cmd.Flags().GetBool("json")
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %d directory(ies) for %s files\n",
					len(args), strings.Join(tabular.Extensions, ", "))
				fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
			}

			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := watcher.Start(ctx); err != nil {
				return err
			}

			st := watcher.GetStatus()
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": st,
					"events": watcher.GetEvents(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nStopped. %d file(s) processed, %d error(s).\n", st.EventCount, st.Errors)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only import files whose name matches this glob")
	cmd.Flags().DurationVar(&debounce, "debounce", w.DefaultDebounce, "Wait this long after the last write before importing")

	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
