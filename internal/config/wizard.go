package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Wizard runs the interactive setup and writes the answers to the config
// file. If in is nil, reads from os.Stdin.
func Wizard(in io.Reader, out io.Writer) error {
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		scanner.Scan()
		return strings.TrimSpace(scanner.Text())
	}

	file, err := fileConfig()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "sheetbot setup")
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 48))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Step 1/3: Language model")
	fmt.Fprintln(out, "  Which provider should answer questions about your data?")
	fmt.Fprintln(out, "  [1] Mistral (default)")
	fmt.Fprintln(out, "  [2] Anthropic Claude")
	fmt.Fprintln(out, "  [3] OpenAI")
	fmt.Fprintln(out, "  [4] Ollama (local, free)")
	fmt.Fprintln(out, "  [5] Skip for now")

	switch ask("  Choice: ") {
	case "", "1":
		file.Set("provider", "mistral")
		if key := ask("  Paste your Mistral API key: "); key != "" {
			file.Set("api_keys.mistral", key)
			fmt.Fprintln(out, "  API key saved")
		}
	case "2":
		file.Set("provider", "anthropic")
		if key := ask("  Paste your Anthropic API key (sk-ant-...): "); key != "" {
			file.Set("api_keys.anthropic", key)
			fmt.Fprintln(out, "  API key saved")
		}
	case "3":
		file.Set("provider", "openai")
		if key := ask("  Paste your OpenAI API key (sk-...): "); key != "" {
			file.Set("api_keys.openai", key)
			fmt.Fprintln(out, "  API key saved")
		}
	case "4":
		file.Set("provider", "ollama")
		host := ask("  Ollama host (default: http://localhost:11434): ")
		if host == "" {
			host = "http://localhost:11434"
		}
		file.Set("ollama.host", host)
		fmt.Fprintln(out, "  Ollama configured")
	default:
		fmt.Fprintln(out, "  Skipped")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Step 2/3: Telegram (optional)")
	if token := ask("  Bot token from @BotFather (empty to skip): "); token != "" {
		file.Set("telegram.token", token)
		fmt.Fprintln(out, "  Token saved")
	} else {
		fmt.Fprintln(out, "  Skipped")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Step 3/3: Storage")
	if path := ask("  Database file (default: database.json): "); path != "" {
		file.Set("db_path", path)
	}
	fmt.Fprintln(out)

	if err := saveFile(file); err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}

	fmt.Fprintln(out, strings.Repeat("-", 48))
	fmt.Fprintln(out, "sheetbot is ready!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Quick start:")
	fmt.Fprintln(out, "  sheetbot sheet import people.xlsx")
	fmt.Fprintln(out, "  sheetbot ask \"How many rows are in the database?\"")
	fmt.Fprintln(out, "  sheetbot serve                  (Telegram)")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file: %s\n", ConfigPath())
	return nil
}
