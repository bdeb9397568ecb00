package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new webwalk project",
	Long: `Initialize a new webwalk project in the current directory.

This creates:
  - webwalk.yaml        - Configuration file with environments
  - example.walk.yaml   - Example walk file

Examples:
  webwalk init
  webwalk init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "webwalk.yaml")
	exampleFile := filepath.Join(cwd, "example.walk.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	configContent := map[string]any{
		"defaultEnvironment": "dev",
		"timeout":            "30s",
		"followRedirects":    true,
		"postbacks":          true,
		"headers": map[string]string{
			"User-Agent": "webwalk/1.0",
		},
		"environments": map[string]map[string]any{
			"dev": {
				"baseUrl": "http://127.0.0.1:8000",
				"vars": map[string]string{
					"password": "hunter2-not-really",
				},
			},
			"staging": {
				"baseUrl": "https://staging.app.example.com",
			},
		},
	}

	configYAML, _ := yaml.Marshal(configContent)
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	exampleContent := `name: register and log in
vars:
  email: demo+{{random(1000, 9999)}}@example.com

steps:
  - name: open registration page
    get: /user/register
    expect:
      - status == 200
      - form user_register exists

  - name: submit registration
    post: /user/register
    form:
      _formname: user_register
      first_name: Demo
      last_name: Walker
      email: "{{email}}"
      password: "{{password}}"
      password_two: "{{password}}"
    expect:
      - status == 200
      - body !contains error

  - name: log out
    get: /user/logout

  - name: log back in
    post: /user/login
    form:
      _formname: user_login
      email: "{{email}}"
      password: "{{password}}"
    expect:
      - status == 200
      - body contains Welcome
`

	if err := os.WriteFile(exampleFile, []byte(exampleContent), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nwebwalk project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'webwalk run example.walk.yaml' to execute the example walk.\n")

	return nil
}
