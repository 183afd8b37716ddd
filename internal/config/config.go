// Package config manages application configuration from files, .env and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DBPath      string  `mapstructure:"db_path"`
	ExportsDir  string  `mapstructure:"exports_dir"`
	UploadsDir  string  `mapstructure:"uploads_dir"`
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	APIKeys     struct {
		Mistral   string `mapstructure:"mistral"`
		Anthropic string `mapstructure:"anthropic"`
		OpenAI    string `mapstructure:"openai"`
	} `mapstructure:"api_keys"`
	Ollama struct {
		Host string `mapstructure:"host"`
	} `mapstructure:"ollama"`
	Telegram struct {
		Token       string `mapstructure:"token"`
		PollTimeout int    `mapstructure:"poll_timeout"`
	} `mapstructure:"telegram"`
	Assistant struct {
		Timeout time.Duration `mapstructure:"timeout"`
		Retries int           `mapstructure:"retries"`
	} `mapstructure:"assistant"`
	ExportKeywords []string `mapstructure:"export_keywords"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb"`
	Audit          struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"audit"`
}

// defaults are applied by Load and restored by ResetConfig.
var defaults = map[string]interface{}{
	"db_path":               "database.json",
	"exports_dir":           "exports",
	"uploads_dir":           "uploads",
	"provider":              "mistral",
	"model":                 "",
	"temperature":           0.3,
	"max_tokens":            0,
	"ollama.host":           "http://localhost:11434",
	"telegram.poll_timeout": 60,
	"assistant.timeout":     "120s",
	"assistant.retries":     3,
	"max_upload_mb":         20,
	"audit.enabled":         true,
	"audit.path":            "",
}

// envAliases are the plain variable names accepted next to SHEETBOT_*.
var envAliases = map[string]string{
	"telegram.token":     "TELEGRAM_BOT_TOKEN",
	"api_keys.mistral":   "MISTRAL_API_KEY",
	"api_keys.anthropic": "ANTHROPIC_API_KEY",
	"api_keys.openai":    "OPENAI_API_KEY",
}

// secretKeys are masked by ShowConfig.
var secretKeys = map[string]bool{
	"telegram.token":     true,
	"api_keys.mistral":   true,
	"api_keys.anthropic": true,
	"api_keys.openai":    true,
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	seen := map[string]bool{"export_keywords": true}
	for k := range defaults {
		seen[k] = true
	}
	for k := range envAliases {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Load reads the configuration from ~/.sheetbot/config.yaml and environment variables.
func Load() (*Config, error) {
	setup()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("could not read %s: %w", ConfigPath(), err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setup() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	for k, v := range defaults {
		viper.SetDefault(k, v)
	}

	viper.SetEnvPrefix("SHEETBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range Keys() {
		if alias, ok := envAliases[key]; ok {
			_ = viper.BindEnv(key, envName(key), alias)
			continue
		}
		_ = viper.BindEnv(key, envName(key))
	}
}

// envName returns the SHEETBOT_ variable for key.
func envName(key string) string {
	return "SHEETBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// EnvResult describes a .env load.
type EnvResult struct {
	Path   string
	Loaded bool
	Keys   int
	Err    error
}

// LoadEnvFile loads a .env file into the process environment. Variables that
// are already set win. An empty path means SHEETBOT_ENV_FILE or ./.env; a
// missing default file is not an error.
func LoadEnvFile(path string) EnvResult {
	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv("SHEETBOT_ENV_FILE"))
		explicit = path != ""
	}
	if path == "" {
		path = ".env"
	}
	res := EnvResult{Path: path}

	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return EnvResult{}
		}
		res.Err = fmt.Errorf("could not load %s: %w", path, err)
		return res
	}
	res.Loaded = true
	for k, v := range values {
		if _, exists := os.LookupEnv(k); exists {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			res.Err = err
			return res
		}
		res.Keys++
	}
	return res
}

// Set sets a config value and saves it to the config file. Only the file's
// own values are written back, never values that came from the environment.
func Set(key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q; run 'sheetbot config keys' to list them", key)
	}
	var v interface{} = value
	if key == "export_keywords" {
		var words []string
		for _, w := range strings.Split(value, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
		v = words
	}

	file, err := fileConfig()
	if err != nil {
		return err
	}
	file.Set(key, v)
	if err := saveFile(file); err != nil {
		return err
	}
	viper.Set(key, v)
	return nil
}

// Get retrieves the effective value of a config key.
func Get(key string) string {
	setup()
	_ = viper.ReadInConfig()
	if key == "export_keywords" {
		return strings.Join(viper.GetStringSlice(key), ",")
	}
	return viper.GetString(key)
}

// ResetConfig deletes the config file and restores defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	viper.Reset()
	setup()
	return nil
}

// fileConfig returns a viper instance holding only the config file's values.
func fileConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(ConfigPath())
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, statErr := os.Stat(ConfigPath()); statErr == nil {
			return nil, fmt.Errorf("could not read %s: %w", ConfigPath(), err)
		}
	}
	return v, nil
}

// saveFile writes v to ~/.sheetbot/config.yaml.
func saveFile(v *viper.Viper) error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	os.Chmod(path, 0o600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Dir returns the sheetbot configuration directory.
func Dir() string {
	return configDir()
}

func configDir() string {
	if dir := os.Getenv("SHEETBOT_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sheetbot"
	}
	return filepath.Join(home, ".sheetbot")
}
