// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for sheetbot.

Install instructions:
  Bash:       sheetbot completion bash > /etc/bash_completion.d/sheetbot
              echo 'source <(sheetbot completion bash)' >> ~/.bashrc
  Zsh:        sheetbot completion zsh > ~/.zsh/completions/_sheetbot
  Fish:       sheetbot completion fish > ~/.config/fish/completions/sheetbot.fish
  PowerShell: sheetbot completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				fmt.Fprintln(out, "# sheetbot bash completion")
				fmt.Fprintln(out, "# Install: sheetbot completion bash > /etc/bash_completion.d/sheetbot")
				fmt.Fprintln(out, "# Or:      echo 'source <(sheetbot completion bash)' >> ~/.bashrc")
				fmt.Fprintln(out)
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				fmt.Fprintln(out, "# sheetbot zsh completion")
				fmt.Fprintln(out, "# Install: sheetbot completion zsh > ~/.zsh/completions/_sheetbot")
				fmt.Fprintln(out)
				return rootCmd.GenZshCompletion(out)
			case "fish":
				fmt.Fprintln(out, "# sheetbot fish completion")
				fmt.Fprintln(out, "# Install: sheetbot completion fish > ~/.config/fish/completions/sheetbot.fish")
				fmt.Fprintln(out)
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				fmt.Fprintln(out, "# sheetbot PowerShell completion")
				fmt.Fprintln(out, "# Install: sheetbot completion powershell >> $PROFILE")
				fmt.Fprintln(out)
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	return cmd
}
