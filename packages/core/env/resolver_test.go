package env

import (
	"strings"
	"testing"
)

func TestResolveVariables(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		vars     map[string]string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "single variable",
			input:    "{{host}}/login",
			vars:     map[string]string{"host": "http://app"},
			expected: "http://app/login",
		},
		{
			name:     "multiple variables",
			input:    "{{a}} and {{b}}",
			vars:     map[string]string{"a": "one", "b": "two"},
			expected: "one and two",
		},
		{
			name:     "whitespace inside braces",
			input:    "{{ host }}",
			vars:     map[string]string{"host": "x"},
			expected: "x",
		},
		{
			name:     "unresolved stays intact",
			input:    "{{missing}}",
			expected: "{{missing}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.vars)
			if got := r.Resolve(tt.input); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveCapturePrecedence(t *testing.T) {
	r := NewResolver()
	r.SetVariable("sid", "from-vars")
	r.SetCapture("login", "sid", "from-capture")

	if got := r.Resolve("{{sid}}"); got != "from-capture" {
		t.Errorf("captures should win over variables, got %q", got)
	}
	if got := r.Resolve("{{login.sid}}"); got != "from-capture" {
		t.Errorf("step-qualified capture not found, got %q", got)
	}
}

func TestResolveProcessEnv(t *testing.T) {
	t.Setenv("WALK_TEST_TOKEN", "tok-1")

	r := NewResolver()
	if got := r.Resolve("Bearer {{$WALK_TEST_TOKEN}}"); got != "Bearer tok-1" {
		t.Errorf("got %q", got)
	}
	if got := r.Resolve("{{$WALK_TEST_UNSET}}"); got != "{{$WALK_TEST_UNSET}}" {
		t.Errorf("unset env var should stay intact, got %q", got)
	}
}

func TestResolveBuiltinFunctions(t *testing.T) {
	r := NewResolver()

	got := r.Resolve("{{uuid()}}")
	if strings.Contains(got, "{{") || len(got) != 36 {
		t.Errorf("uuid() not resolved: %q", got)
	}

	if got := r.Resolve("{{nope()}}"); got != "{{nope()}}" {
		t.Errorf("unknown function should stay intact, got %q", got)
	}
}

func TestWarnOncePerPlaceholder(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, format)
	})

	r.Resolve("{{missing}}")
	r.Resolve("{{missing}} again")
	r.Resolve("{{other}}")

	if len(warnings) != 2 {
		t.Fatalf("want 2 distinct warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("host", "a")
	r.SetCapture("login", "sid", "s-1")

	clone := r.Clone()
	clone.SetVariable("host", "b")
	clone.SetCapture("login", "sid", "s-2")

	if got := r.Resolve("{{host}} {{sid}}"); got != "a s-1" {
		t.Errorf("clone leaked into parent: %q", got)
	}
	if got := clone.Resolve("{{host}} {{sid}}"); got != "b s-2" {
		t.Errorf("clone lost its own values: %q", got)
	}
}

func TestResolveAllAndSlice(t *testing.T) {
	r := NewResolver()
	r.SetVariable("v", "x")

	all := r.ResolveAll(map[string]string{"a": "{{v}}", "b": "plain"})
	if all["a"] != "x" || all["b"] != "plain" {
		t.Errorf("ResolveAll = %v", all)
	}

	slice := r.ResolveSlice([]string{"{{v}}", "plain"})
	if slice[0] != "x" || slice[1] != "plain" {
		t.Errorf("ResolveSlice = %v", slice)
	}
}
