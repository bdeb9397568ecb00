package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates one walk file.
func LoadFile(path string) (*Walk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data, path)
}

// Load parses walk YAML and validates it. path is recorded for error
// messages and relative-path resolution.
func Load(data []byte, path string) (*Walk, error) {
	var w Walk
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	w.Path = path
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate reports every structural problem in the walk at once.
func (w *Walk) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", w.Path, fmt.Sprintf(format, args...)))
	}

	if w.Name == "" {
		fail("walk has no name")
	}
	if len(w.Steps) == 0 {
		fail("walk has no steps")
	}
	if w.Client != nil && w.Client.Scanner != "" &&
		w.Client.Scanner != "pattern" && w.Client.Scanner != "dom" {
		fail("unknown scanner %q (want pattern or dom)", w.Client.Scanner)
	}
	if w.WaitFor != nil && w.WaitFor.URL == "" {
		fail("wait_for has no url")
	}

	for i, step := range w.Steps {
		label := step.Name
		if label == "" {
			label = fmt.Sprintf("step %d", i+1)
			fail("line %d: %s has no name", step.Line, label)
		}
		if step.Get != "" && step.Post != "" {
			fail("line %d: %s sets both get and post", step.Line, label)
		}
		if _, ok := step.RequestPath(); !ok && step.DB == nil {
			fail("line %d: %s neither makes a request nor checks the database", step.Line, label)
		}
		if step.Get != "" && (len(step.Form) > 0 || step.Body != "") {
			fail("line %d: %s sends a body with get (use post)", step.Line, label)
		}
		if step.Body != "" && len(step.Form) > 0 {
			fail("line %d: %s sets both body and form", step.Line, label)
		}
		for _, line := range step.Expect {
			if strings.TrimSpace(line) == "" {
				fail("line %d: %s has an empty expect line", step.Line, label)
			}
		}
		for _, capture := range step.Capture {
			if capture.Name == "" {
				fail("line %d: %s has a capture without a name", step.Line, label)
			}
			if capture.Sources() != 1 {
				fail("line %d: %s capture %q needs exactly one source (json, header, cookie, form or regex)",
					step.Line, label, capture.Name)
			}
		}
		if step.DB != nil {
			if step.DB.Query == "" {
				fail("line %d: %s db check has no query", step.Line, label)
			}
			if len(step.DB.Expect) == 0 && step.DB.Rows == nil {
				fail("line %d: %s db check expects nothing (set expect or rows)", step.Line, label)
			}
		}
	}

	return errors.Join(errs...)
}

// Discover expands the given arguments into walk files: files are taken
// as-is, directories are searched recursively for *.walk.yaml and
// *.walk.yml. No arguments means the working directory.
func Discover(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if IsWalkFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsWalkFile reports whether path looks like a walk file.
func IsWalkFile(path string) bool {
	return strings.HasSuffix(path, ".walk.yaml") || strings.HasSuffix(path, ".walk.yml")
}
