package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/logging"
)

// Issue represents a validation finding.
type Issue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// ShowConfig renders the effective configuration as YAML with secrets masked.
func ShowConfig() (string, error) {
	setup()
	_ = viper.ReadInConfig()

	tree := map[string]interface{}{}
	for _, key := range Keys() {
		var value interface{} = viper.Get(key)
		if secretKeys[key] {
			value = logging.Mask(viper.GetString(key))
		}
		insert(tree, strings.Split(key, "."), value)
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("could not render config: %w", err)
	}
	return fmt.Sprintf("# %s\n%s", ConfigPath(), out), nil
}

func insert(tree map[string]interface{}, path []string, value interface{}) {
	if len(path) == 1 {
		tree[path[0]] = value
		return
	}
	child, ok := tree[path[0]].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
		tree[path[0]] = child
	}
	insert(child, path[1:], value)
}

// Validate checks config values and returns a list of issues.
func Validate() []Issue {
	cfg, err := Load()
	if err != nil {
		return []Issue{{
			Key:      "config",
			Severity: "error",
			Message:  err.Error(),
			Fix:      "sheetbot config reset",
		}}
	}

	var issues []Issue
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "mistral":
		issues = append(issues, keyIssue(provider, "api_keys.mistral", "MISTRAL_API_KEY", cfg.APIKeys.Mistral))
	case "anthropic":
		issues = append(issues, keyIssue(provider, "api_keys.anthropic", "ANTHROPIC_API_KEY", cfg.APIKeys.Anthropic))
	case "openai":
		issues = append(issues, keyIssue(provider, "api_keys.openai", "OPENAI_API_KEY", cfg.APIKeys.OpenAI))
	case "ollama":
		issues = append(issues, Issue{
			Key:      "provider",
			Severity: "info",
			Message:  fmt.Sprintf("Ollama configured at %s (no API key needed)", cfg.Ollama.Host),
		})
	default:
		issues = append(issues, Issue{
			Key:      "provider",
			Severity: "error",
			Message:  fmt.Sprintf("unknown provider %q", cfg.Provider),
			Fix:      "sheetbot config set provider " + strings.Join(ai.Providers, "|"),
		})
	}

	if cfg.Telegram.Token == "" {
		issues = append(issues, Issue{
			Key:      "telegram.token",
			Severity: "warning",
			Message:  "Telegram token is not set; 'sheetbot serve' will not start",
			Fix:      "export TELEGRAM_BOT_TOKEN=...\nOr: sheetbot config set telegram.token <token>",
		})
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		issues = append(issues, Issue{
			Key:      "temperature",
			Severity: "error",
			Message:  fmt.Sprintf("temperature %.2f is outside 0..2", cfg.Temperature),
			Fix:      "sheetbot config set temperature 0.3",
		})
	}
	if cfg.Assistant.Timeout <= 0 {
		issues = append(issues, Issue{
			Key:      "assistant.timeout",
			Severity: "error",
			Message:  "assistant timeout must be positive",
			Fix:      "sheetbot config set assistant.timeout 120s",
		})
	}
	if cfg.Assistant.Retries < 0 {
		issues = append(issues, Issue{
			Key:      "assistant.retries",
			Severity: "warning",
			Message:  "assistant retries is negative; every request gets a single attempt",
			Fix:      "sheetbot config set assistant.retries 3",
		})
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			issues = append(issues, Issue{
				Key:      "db_path",
				Severity: "warning",
				Message:  fmt.Sprintf("directory %s does not exist yet", dir),
				Fix:      "mkdir -p " + dir,
			})
		}
	}

	return issues
}

func keyIssue(provider, key, env, value string) Issue {
	if value == "" {
		return Issue{
			Key:      key,
			Severity: "error",
			Message:  fmt.Sprintf("provider is %q but %s is not set", provider, env),
			Fix:      fmt.Sprintf("export %s=...\nOr: sheetbot config set %s <key>", env, key),
		}
	}
	return Issue{
		Key:      key,
		Severity: "info",
		Message:  fmt.Sprintf("%s API key configured (%s)", provider, logging.Mask(value)),
	}
}

// ToEnv returns all non-empty config values as a map of env var name -> value.
func ToEnv() map[string]string {
	setup()
	_ = viper.ReadInConfig()

	env := make(map[string]string)
	for _, key := range Keys() {
		value := viper.GetString(key)
		if key == "export_keywords" {
			value = strings.Join(viper.GetStringSlice(key), ",")
		}
		if value == "" {
			continue
		}
		if alias, ok := envAliases[key]; ok {
			env[alias] = value
			continue
		}
		env[envName(key)] = value
	}
	return env
}
