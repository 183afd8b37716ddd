// Package cmd contains all CLI commands for the sheetbot binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/ask"
	cmdaudit "github.com/klytics/sheetbot/cmd/audit"
	"github.com/klytics/sheetbot/cmd/completion"
	cmdconfig "github.com/klytics/sheetbot/cmd/config"
	"github.com/klytics/sheetbot/cmd/doctor"
	"github.com/klytics/sheetbot/cmd/serve"
	"github.com/klytics/sheetbot/cmd/sheet"
	cmdshell "github.com/klytics/sheetbot/cmd/shell"
	"github.com/klytics/sheetbot/cmd/version"
	cmdwatch "github.com/klytics/sheetbot/cmd/watch"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/output"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
	dbPath     string
	modelName  string
	provider   string
	envFile    string
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sheetbot",
		Short: "Chat bot that keeps spreadsheet data and edits it with a language model",
		Long: `sheetbot stores uploaded spreadsheets as a JSON database and answers
questions about them through a language model. The model can propose edits,
which are applied to the database, and any sheet can be sent back as .xlsx.

Talk to it on Telegram (serve), in the terminal (shell, ask), or drop files
into a watched directory (watch).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor || os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
			if jsonOutput {
				os.Setenv("SHEETBOT_JSON", "true")
			}
			res := config.LoadEnvFile(envFile)
			if res.Err != nil {
				return res.Err
			}
			if res.Loaded && verbose {
				fmt.Fprintf(os.Stderr, "loaded %d variable(s) from %s\n", res.Keys, res.Path)
			}
			return nil
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default from config: database.json)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "AI provider: mistral | anthropic | openai | ollama")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "AI model name override")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default: ./.env)")

	// Register subcommands
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(cmdshell.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(ask.NewCommand())
	rootCmd.AddCommand(sheet.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(cmdaudit.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and handles any returned errors.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			output.PrintJSONError(rootCmd.Name(), err, output.ExitUserError)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}
