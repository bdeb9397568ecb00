package cmd

import (
	"fmt"

	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory...]",
	Short: "Validate walk files without executing them",
	Long: `Validate walk files for structural problems without executing them.

Examples:
  webwalk validate login.walk.yaml
  webwalk validate ./walks/`,
	Args: cobra.ArbitraryArgs,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := walk.Discover(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .walk.yaml files found")
	}

	hasErrors := false
	for _, file := range files {
		if _, err := walk.LoadFile(file); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s:\n%v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}

	return nil
}
