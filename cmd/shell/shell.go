// Package shell provides the "sheetbot shell" interactive REPL command.
package shell

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/config"
	shellpkg "github.com/klytics/sheetbot/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var evalCmd string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Chat with the bot from the terminal",
		Long: `Start an interactive session that talks to the bot exactly like a chat.

Type questions or edit requests, /status, /help, or 'upload <file>' to import a
spreadsheet. Exported sheets are saved to the exports directory. Tab completion
works for commands and file paths.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			// The session saves exported files itself.
			opts := a.BotOptions()
			opts.ExportsDir = ""
			b := bot.New(opts)

			history := filepath.Join(config.Dir(), "shell_history")
			session := shellpkg.NewSession(b, history, a.Config.ExportsDir)
			session.Out = cmd.OutOrStdout()
			session.ErrOut = cmd.ErrOrStderr()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if evalCmd != "" {
				if err := session.Eval(ctx, evalCmd); err != nil && !errors.Is(err, shellpkg.ErrExit) {
					return err
				}
				return nil
			}
			return session.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Send a single message and exit")
	return cmd
}
