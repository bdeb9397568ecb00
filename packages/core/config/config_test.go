package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
defaultEnvironment: dev
timeout: 45s
followRedirects: false
headers:
  x-team: qa
sessionPattern: session_id_(?P<name>.+)
faultHeader: x-application-error
environments:
  dev:
    baseUrl: http://127.0.0.1:8000/welcome/default
    vars:
      admin: dev-admin
  staging:
    baseUrl: https://staging.example.com/welcome/default
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "webwalk.yaml", sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.DefaultEnvironment)
	assert.Equal(t, "45s", cfg.Timeout)
	assert.False(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetPostbacks())
	assert.Equal(t, "qa", cfg.Headers["x-team"])
	assert.Equal(t, path, cfg.Path)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFindSearchesUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, ".webwalk.yaml", sampleConfig)

	nested := filepath.Join(root, "walks", "auth")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok := Find(nested)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, ".webwalk.yaml"), found)
}

func TestFindNothing(t *testing.T) {
	// A fresh temp dir has no config anywhere up to the filesystem root,
	// unless a stray file exists above it; tolerate that by only checking
	// the miss inside an isolated hierarchy when nothing was planted.
	dir := t.TempDir()
	if found, ok := Find(dir); ok {
		t.Skipf("unexpected config on this machine: %s", found)
	}
}

func TestEnvironmentSelection(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "webwalk.yaml", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	e, err := cfg.Environment("staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", e.Name)
	assert.Equal(t, "https://staging.example.com/welcome/default", e.BaseURL)

	// Empty name falls back to defaultEnvironment.
	e, err = cfg.Environment("")
	require.NoError(t, err)
	assert.Equal(t, "dev", e.Name)
	assert.Equal(t, "dev-admin", e.Vars["admin"])

	_, err = cfg.Environment("prod")
	assert.ErrorContains(t, err, "unknown environment")
}

func TestZeroConfig(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetPostbacks())

	e, err := cfg.Environment("")
	require.NoError(t, err)
	assert.Empty(t, e.BaseURL)
}
