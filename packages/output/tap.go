package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/core/runner"
)

// TAPFormatter renders results as TAP version 13, one test point per
// step across all walks.
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	error      string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	prefix := result.Walk
	if prefix == "" {
		prefix = result.File
	}

	for _, s := range result.Steps {
		f.testCount++
		tr := tapResult{
			number:     f.testCount,
			name:       prefix + ": " + s.Name,
			passed:     s.Passed,
			skipped:    s.Skipped,
			skipReason: s.SkipReason,
		}

		if s.Error != nil {
			tr.error = s.Error.Error()
		}

		if !s.Passed && !s.Skipped {
			for _, a := range s.Assertions {
				if !a.Passed {
					tr.failures = append(tr.failures, fmt.Sprintf("%s: %s", a.Assertion.Raw, a.Message))
				}
			}
			if s.DBCheck != nil && !s.DBCheck.Passed {
				for _, msg := range s.DBCheck.Failures {
					tr.failures = append(tr.failures, "db: "+msg)
				}
			}
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test points.
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush.
}

// Flush writes the accumulated TAP output.
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			reason := r.skipReason
			if reason == "" || reason == "filtered out" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
			continue
		}

		if r.error != "" {
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: error\n")
			fmt.Fprintf(f.writer, "  ...\n")
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		} else {
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			if len(r.failures) > 0 {
				fmt.Fprintf(f.writer, "  ---\n")
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, a := range r.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a))
				}
				fmt.Fprintf(f.writer, "  ...\n")
			}
		}
	}

	fmt.Fprintln(f.writer)

	return nil
}

// escapeYAML wraps a value in quotes when it contains characters that
// would break the inline YAML blocks.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
