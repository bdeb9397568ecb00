package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "webwalk",
	Short: "Scripted walks through a web application.",
	Long: `webwalk drives a web application the way a browser session would:
it keeps cookies, fills anti-forgery form tokens, follows a scripted
walk of requests and checks what comes back. Walks are plain YAML
files, so functional tests read like the clicks they replay.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
