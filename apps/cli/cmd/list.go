package cmd

import (
	"fmt"

	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory...]",
	Short: "List walks and their steps",
	Long: `List the walks defined in .walk.yaml files and the steps each one
takes.

Examples:
  webwalk list login.walk.yaml
  webwalk list ./walks/`,
	Args: cobra.ArbitraryArgs,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := walk.Discover(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .walk.yaml files found")
	}

	for _, file := range files {
		w, err := walk.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error loading %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", w.Name, file)
		for _, step := range w.Steps {
			detail := ""
			if path, ok := step.RequestPath(); ok {
				method := "GET"
				if step.Post != "" {
					method = "POST"
				}
				detail = fmt.Sprintf(" [%s %s]", method, path)
			} else if step.DB != nil {
				detail = " [db check]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s%s\n", step.Name, detail)
		}
	}

	return nil
}
