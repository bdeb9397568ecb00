package env

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/calvale/webwalk/packages/builtin"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives one message per distinct unresolved placeholder.
type WarnFunc func(format string, args ...any)

// Resolver substitutes {{...}} placeholders in walk strings. It resolves
// captures from earlier steps first, then variables, {{$VAR}} from the
// process environment, and {{func(args)}} through the builtin registry.
// Unresolved placeholders stay intact so they surface in assertions.
// Safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	captures  map[string]string
	funcs     *builtin.Registry
	warnFunc  WarnFunc
	warned    map[string]bool
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		captures:  make(map[string]string),
		funcs:     builtin.NewRegistry(),
		warned:    make(map[string]bool),
	}
}

// SetWarnFunc routes unresolved-placeholder warnings, one per distinct
// placeholder per resolver.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(key, format string, args ...any) {
	r.mu.Lock()
	fn := r.warnFunc
	seen := r.warned[key]
	r.warned[key] = true
	r.mu.Unlock()
	if fn != nil && !seen {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a captured value under both its bare name and a
// step-qualified one, so later steps can say {{sid}} or {{login.sid}}.
func (r *Resolver) SetCapture(stepName, captureName, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stepName != "" {
		r.captures[stepName+"."+captureName] = value
	}
	r.captures[captureName] = value
}

func (r *Resolver) GetCapture(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

// Lookup finds a value under capture-then-variable precedence.
func (r *Resolver) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return "", false
}

// Resolve substitutes every placeholder in input it can.
func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			name := expr[1:]
			if val := os.Getenv(name); val != "" {
				return val
			}
			r.warn("$"+name, "unresolved environment variable: $%s", name)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := r.funcs.Call(expr); ok {
				return result
			}
			r.warn(expr, "unresolved function call: %s", expr)
			return match
		}

		if val, ok := r.Lookup(expr); ok {
			return val
		}
		r.warn(expr, "unresolved variable: %s", expr)
		return match
	})
}

// ResolveAll maps Resolve over the values of a string map.
func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	resolved := make(map[string]string, len(values))
	for k, v := range values {
		resolved[k] = r.Resolve(v)
	}
	return resolved
}

// ResolveSlice maps Resolve over a slice.
func (r *Resolver) ResolveSlice(values []string) []string {
	resolved := make([]string, len(values))
	for i, v := range values {
		resolved[i] = r.Resolve(v)
	}
	return resolved
}

// Clone copies variables and captures into an independent resolver.
// Virtual users in stress runs clone the seed resolver so captures stay
// session-local.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}
