package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "sheetbot", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("json", false, "")
	root.AddCommand(NewCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setup(t *testing.T) {
	t.Helper()
	color.NoColor = true
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("SHEETBOT_CONFIG_DIR", t.TempDir())
	for _, env := range []string{"TELEGRAM_BOT_TOKEN", "MISTRAL_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(env, "")
	}
}

func TestSetGet(t *testing.T) {
	setup(t)
	if _, err := run(t, "", "config", "set", "model", "mistral-large-latest"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "config", "get", "model")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "model: mistral-large-latest" {
		t.Errorf("unexpected output %q", out)
	}
	if out, _ := run(t, "", "config", "get", "audit.path"); !strings.Contains(out, "(not set)") {
		t.Errorf("expected (not set), got %q", out)
	}
	if _, err := run(t, "", "config", "get", "nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowJSONMasksSecrets(t *testing.T) {
	setup(t)
	run(t, "", "config", "set", "api_keys.mistral", "mk-supersecret1234")

	out, err := run(t, "", "config", "show", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatal(err)
	}
	if env["MISTRAL_API_KEY"] != "****1234" {
		t.Errorf("key not masked: %q", env["MISTRAL_API_KEY"])
	}
	if env["SHEETBOT_PROVIDER"] != "mistral" {
		t.Errorf("SHEETBOT_PROVIDER = %q", env["SHEETBOT_PROVIDER"])
	}
}

func TestValidateReportsMissingKey(t *testing.T) {
	setup(t)
	out, err := run(t, "", "config", "validate")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "MISTRAL_API_KEY is not set") || !strings.Contains(out, "Fix:") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestKeysAndEnv(t *testing.T) {
	setup(t)
	out, _ := run(t, "", "config", "keys")
	if !strings.Contains(out, "telegram.token\n") || !strings.Contains(out, "export_keywords\n") {
		t.Errorf("keys missing:\n%s", out)
	}
	out, _ = run(t, "", "config", "env")
	if !strings.Contains(out, `export SHEETBOT_DB_PATH="database.json"`) {
		t.Errorf("env output missing db path:\n%s", out)
	}
}

func TestInitWizard(t *testing.T) {
	setup(t)
	out, err := run(t, "4\n\n\n\n", "config", "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Ollama configured") {
		t.Errorf("unexpected wizard output:\n%s", out)
	}
	if got, _ := run(t, "", "config", "get", "provider"); strings.TrimSpace(got) != "provider: ollama" {
		t.Errorf("provider not saved: %q", got)
	}
}
