// Package serve provides the "sheetbot serve" command that runs the Telegram bot.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/transport/telegram"
)

// NewCommand creates the "serve" command.
func NewCommand() *cobra.Command {
	var apiEndpoint, fileEndpoint string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Long: `Connects to Telegram with the configured bot token and answers messages
until interrupted. Each chat can upload spreadsheets, ask questions and request
edits or exports.

The token comes from telegram.token in the config file, SHEETBOT_TELEGRAM_TOKEN
or TELEGRAM_BOT_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			cfg := a.Config

			t, err := telegram.New(telegram.Options{
				Token:          cfg.Telegram.Token,
				APIEndpoint:    apiEndpoint,
				FileEndpoint:   fileEndpoint,
				MaxUploadBytes: a.BotOptions().MaxUploadBytes,
				PollTimeout:    cfg.Telegram.PollTimeout,
				Logger:         a.Logger,
			}, a.NewBot())
			if err != nil {
				return err
			}

			base := cmd.Context()
			if base == nil {
				base = context.Background()
			}
			ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.Logger.Info("bot started", "bot", "@"+t.Username(), "database", a.Store.Path(), "provider", cfg.Provider)
			fmt.Fprintf(cmd.OutOrStdout(), "🤖 @%s is running. Press Ctrl+C to stop.\n", t.Username())
			if err := t.Run(ctx); err != nil {
				return err
			}
			a.Logger.Info("bot stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "Bot API endpoint format string (default: public Bot API)")
	cmd.Flags().StringVar(&fileEndpoint, "file-endpoint", "", "Bot API file endpoint format string")
	return cmd
}
