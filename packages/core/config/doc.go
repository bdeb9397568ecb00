// Package config loads project-level settings from a webwalk.yaml file
// found in the working directory or any parent.
package config
