package env

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "simple pairs",
			content:  "HOST=http://app\nTOKEN=abc",
			expected: map[string]string{"HOST": "http://app", "TOKEN": "abc"},
		},
		{
			name:     "comments and blanks skipped",
			content:  "# creds\n\nTOKEN=abc\n# trailing",
			expected: map[string]string{"TOKEN": "abc"},
		},
		{
			name:     "double quotes stripped",
			content:  `GREETING="hello world"`,
			expected: map[string]string{"GREETING": "hello world"},
		},
		{
			name:     "single quotes stripped",
			content:  `GREETING='hello world'`,
			expected: map[string]string{"GREETING": "hello world"},
		},
		{
			name:     "export prefix tolerated",
			content:  "export TOKEN=abc",
			expected: map[string]string{"TOKEN": "abc"},
		},
		{
			name:     "value with equals kept whole",
			content:  "QUERY=a=b&c=d",
			expected: map[string]string{"QUERY": "a=b&c=d"},
		},
		{
			name:     "lines without equals skipped",
			content:  "garbage\nTOKEN=abc",
			expected: map[string]string{"TOKEN": "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadDotEnv(writeEnvFile(t, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if _, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestExportDotEnv(t *testing.T) {
	t.Setenv("WALK_DOTENV_SET", "original")
	os.Unsetenv("WALK_DOTENV_NEW")
	t.Cleanup(func() { os.Unsetenv("WALK_DOTENV_NEW") })

	path := writeEnvFile(t, "WALK_DOTENV_SET=overridden\nWALK_DOTENV_NEW=fresh")
	if _, err := ExportDotEnv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("WALK_DOTENV_SET"); got != "original" {
		t.Errorf("already-set variable should win, got %q", got)
	}
	if got := os.Getenv("WALK_DOTENV_NEW"); got != "fresh" {
		t.Errorf("new variable not exported, got %q", got)
	}
}

func TestSelectEnvironment(t *testing.T) {
	envs := map[string]Environment{
		"dev":     {BaseURL: "http://localhost:8000", Vars: map[string]string{"admin": "a"}},
		"staging": {BaseURL: "https://staging.app"},
	}

	env, err := Select(envs, "dev")
	if err != nil {
		t.Fatal(err)
	}
	if env.Name != "dev" || env.BaseURL != "http://localhost:8000" {
		t.Errorf("got %+v", env)
	}

	if env, err = Select(envs, "staging"); err != nil || env.Vars == nil {
		t.Errorf("nil vars should be initialized, env=%+v err=%v", env, err)
	}

	if _, err = Select(envs, "prod"); err == nil {
		t.Fatal("want error for unknown environment")
	}

	env, err = Select(envs, "")
	if err != nil || env.Name != "" {
		t.Errorf("empty name should select nothing, env=%+v err=%v", env, err)
	}
}

func TestSystemVars(t *testing.T) {
	t.Setenv(VarPrefix+"email", "homer@example.com")
	t.Setenv("UNRELATED", "x")

	vars := SystemVars()
	if vars["email"] != "homer@example.com" {
		t.Errorf("got %v", vars)
	}
	if _, ok := vars["UNRELATED"]; ok {
		t.Error("unprefixed variables must not leak in")
	}
}

func TestMergeVars(t *testing.T) {
	merged := MergeVars(
		map[string]string{"a": "1", "b": "1"},
		map[string]string{"b": "2"},
	)
	if merged["a"] != "1" || merged["b"] != "2" {
		t.Errorf("later sources must win: %v", merged)
	}
}
