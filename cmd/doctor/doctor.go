// Package doctor provides the "sheetbot doctor" command for checking system health.
package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/docstore"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database and credentials",
		Long:  "Run diagnostic checks to verify sheetbot is properly configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbOverride, _ := cmd.Flags().GetString("db")
			checks := runChecks(dbOverride)

			out := cmd.OutOrStdout()
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(out).Encode(checks)
			}

			errCount := printChecks(out, checks)
			if errCount > 0 {
				return fmt.Errorf("%d check(s) failed", errCount)
			}
			return nil
		},
	}
}

func printChecks(w io.Writer, checks []Check) int {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, "sheetbot doctor")
	fmt.Fprintln(w, "===============")
	fmt.Fprintln(w)

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Fprintf(w, "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
	return errCount
}

func runChecks(dbOverride string) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	if _, err := os.Stat(config.ConfigPath()); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: config.ConfigPath()})
	} else {
		checks = append(checks, Check{Name: "Config File", Status: "warning", Message: "Not found, using defaults. Run 'sheetbot config init'"})
	}

	cfg, err := config.Load()
	if err != nil {
		return append(checks, Check{Name: "Configuration", Status: "error", Message: err.Error()})
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}

	checks = append(checks, databaseCheck(cfg.DBPath))
	checks = append(checks, providerCheck(cfg))

	if cfg.Telegram.Token != "" {
		checks = append(checks, Check{Name: "Telegram", Status: "ok", Message: "Token set"})
	} else {
		checks = append(checks, Check{Name: "Telegram", Status: "warning", Message: "Token not set; 'sheetbot serve' will not start (set TELEGRAM_BOT_TOKEN)"})
	}

	checks = append(checks, dirCheck("Exports Directory", cfg.ExportsDir))
	return checks
}

func databaseCheck(path string) Check {
	abs, _ := filepath.Abs(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Check{Name: "Database", Status: "ok", Message: fmt.Sprintf("%s (will be created on first use)", abs)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Check{Name: "Database", Status: "error", Message: err.Error()}
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Check{Name: "Database", Status: "error", Message: fmt.Sprintf("%s is not a valid database file: %v", abs, err)}
	}
	rows := 0
	for _, s := range doc.Sheets {
		rows += len(s.Rows)
	}
	return Check{Name: "Database", Status: "ok", Message: fmt.Sprintf("%s (%d sheets, %d rows)", abs, len(doc.Sheets), rows)}
}

func providerCheck(cfg *config.Config) Check {
	name := strings.ToLower(cfg.Provider)
	label := fmt.Sprintf("AI Provider (%s)", name)
	switch name {
	case "ollama":
		if _, err := exec.LookPath("ollama"); err == nil {
			return Check{Name: label, Status: "ok", Message: "Ollama found in PATH, host " + cfg.Ollama.Host}
		}
		return Check{Name: label, Status: "warning", Message: "ollama not in PATH; make sure " + cfg.Ollama.Host + " is reachable"}
	}
	_, err := ai.NewProvider(name, cfg.Model, ai.Credentials{
		MistralKey:   cfg.APIKeys.Mistral,
		AnthropicKey: cfg.APIKeys.Anthropic,
		OpenAIKey:    cfg.APIKeys.OpenAI,
	})
	if err != nil {
		return Check{Name: label, Status: "error", Message: err.Error()}
	}
	return Check{Name: label, Status: "ok", Message: "API key set"}
}

func dirCheck(name, dir string) Check {
	if dir == "" {
		return Check{Name: name, Status: "ok", Message: "not set; copies are not kept"}
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return Check{Name: name, Status: "ok", Message: dir + " (will be created)"}
	case err != nil:
		return Check{Name: name, Status: "error", Message: err.Error()}
	case !info.IsDir():
		return Check{Name: name, Status: "error", Message: dir + " is not a directory"}
	}
	return Check{Name: name, Status: "ok", Message: dir}
}
