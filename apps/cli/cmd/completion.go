package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for webwalk.

To load completions:

Bash:
  $ source <(webwalk completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ webwalk completion bash > /etc/bash_completion.d/webwalk
  # macOS:
  $ webwalk completion bash > $(brew --prefix)/etc/bash_completion.d/webwalk

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ webwalk completion zsh > "${fpath[1]}/_webwalk"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ webwalk completion fish | source

  # To load completions for each session, execute once:
  $ webwalk completion fish > ~/.config/fish/completions/webwalk.fish

PowerShell:
  PS> webwalk completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> webwalk completion powershell > webwalk.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
