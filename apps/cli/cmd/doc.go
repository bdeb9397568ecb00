// Package cmd implements the webwalk CLI commands using Cobra.
//
// Available commands:
//   - run: Execute walks against an application
//   - validate: Check walk file syntax without executing
//   - list: Display walks and their steps
//   - init: Create a new webwalk project with example files
//   - version: Show webwalk version information
//
// The CLI supports flags for environment selection, output formatting,
// watch mode for development, and a stress mode that replays one walk
// as concurrent sessions.
package cmd
