package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvale/webwalk/packages/core/env"
	"gopkg.in/yaml.v3"
)

// Config is the project configuration. Precedence when building a run is
// flags, then the selected environment, then the walk file, then this.
type Config struct {
	DefaultEnvironment string                     `yaml:"defaultEnvironment"`
	Timeout            string                     `yaml:"timeout"` // Go duration, e.g. "60s"
	FollowRedirects    *bool                      `yaml:"followRedirects"`
	Postbacks          *bool                      `yaml:"postbacks"`
	Headers            map[string]string          `yaml:"headers"`
	SessionPattern     string                     `yaml:"sessionPattern"`
	FaultHeader        string                     `yaml:"faultHeader"`
	Environments       map[string]env.Environment `yaml:"environments"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// Filenames lists the config file names probed in order.
var Filenames = []string{
	"webwalk.yaml",
	".webwalk.yaml",
	"webwalk.yml",
}

// Load reads the config at path, or searches upward from the working
// directory when path is empty. A missing config is not an error; the
// zero config comes back instead.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	found, ok := Find(dir)
	if !ok {
		return &Config{}, nil
	}
	return loadFile(found)
}

// Find searches dir and its parents for a config file.
func Find(dir string) (string, bool) {
	for {
		for _, name := range Filenames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Environment selects a configured environment by name. An empty name
// falls back to DefaultEnvironment; when neither is set, an empty
// environment comes back.
func (c *Config) Environment(name string) (*env.Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
	}
	return env.Select(c.Environments, name)
}

// GetFollowRedirects reports the redirect setting, defaulting to true.
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetPostbacks reports the postback priming setting, defaulting to true.
func (c *Config) GetPostbacks() bool {
	return getBool(c.Postbacks, true)
}

// BoolPtr returns a pointer to b, for filling optional config fields.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}
