package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// VarPrefix marks process environment variables that seed walk variables
// directly, WEBWALK_VAR_email=x becoming {{email}}.
const VarPrefix = "WEBWALK_VAR_"

// Environment is one named deployment target walks run against.
type Environment struct {
	Name    string            `yaml:"-"`
	BaseURL string            `yaml:"baseUrl"`
	Vars    map[string]string `yaml:"vars"`
}

// Select picks the named environment out of the configured set. An empty
// name selects nothing: walks then rely on their own base_url and vars.
func Select(envs map[string]Environment, name string) (*Environment, error) {
	if name == "" {
		return &Environment{Vars: map[string]string{}}, nil
	}
	env, ok := envs[name]
	if !ok {
		names := make([]string, 0, len(envs))
		for n := range envs {
			names = append(names, n)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return nil, fmt.Errorf("unknown environment %q (none configured)", name)
		}
		return nil, fmt.Errorf("unknown environment %q (have %s)", name, strings.Join(names, ", "))
	}
	env.Name = name
	if env.Vars == nil {
		env.Vars = map[string]string{}
	}
	return &env, nil
}

// SystemVars collects walk variables from the process environment,
// stripping the VarPrefix.
func SystemVars() map[string]string {
	vars := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, VarPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, VarPrefix)
		if name != "" {
			vars[name] = value
		}
	}
	return vars
}

// MergeVars overlays variable maps left to right, later maps winning.
func MergeVars(sources ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			merged[k] = v
		}
	}
	return merged
}
