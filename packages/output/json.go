package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/calvale/webwalk/packages/core/runner"
)

// JSONOutput is the document the json format writes: every run with its
// steps, assertions, and captures, plus an overall summary.
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Runs     []JSONRun   `json:"runs"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONRun is one walk file.
type JSONRun struct {
	File     string     `json:"file"`
	Walk     string     `json:"walk"`
	Passed   int        `json:"passed"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Duration float64    `json:"duration"`
	Steps    []JSONStep `json:"steps"`
}

// JSONStep is one step of a walk. Method, URL, and Status describe the
// final exchange when one happened.
type JSONStep struct {
	Name       string            `json:"name"`
	Passed     bool              `json:"passed"`
	Skipped    bool              `json:"skipped,omitempty"`
	SkipReason string            `json:"skipReason,omitempty"`
	Duration   float64           `json:"duration"`
	Error      string            `json:"error,omitempty"`
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url,omitempty"`
	Status     int               `json:"status,omitempty"`
	Assertions []JSONAssertion   `json:"assertions,omitempty"`
	Captures   map[string]string `json:"captures,omitempty"`
	DB         *JSONDBCheck      `json:"db,omitempty"`
}

type JSONAssertion struct {
	Assertion string `json:"assertion"`
	Passed    bool   `json:"passed"`
	Actual    any    `json:"actual,omitempty"`
	Message   string `json:"message,omitempty"`
}

type JSONDBCheck struct {
	Query    string   `json:"query"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// JSONFormatter accumulates run results and writes one document on Flush.
type JSONFormatter struct {
	writer io.Writer
	runs   []JSONRun
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		runs:   make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	run := JSONRun{
		File:     result.File,
		Walk:     result.Walk,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Duration: float64(result.Duration.Milliseconds()),
		Steps:    make([]JSONStep, 0, len(result.Steps)),
	}

	for _, s := range result.Steps {
		step := JSONStep{
			Name:     s.Name,
			Passed:   s.Passed,
			Skipped:  s.Skipped,
			Duration: float64(s.Duration.Milliseconds()),
		}

		if s.SkipReason != "" && s.SkipReason != "filtered out" {
			step.SkipReason = s.SkipReason
		}

		if s.Error != nil {
			step.Error = s.Error.Error()
		}

		if s.Result != nil {
			step.Method = s.Result.Method
			step.URL = s.Result.URL
			step.Status = s.Result.Status
		}

		if len(s.Assertions) > 0 {
			step.Assertions = make([]JSONAssertion, len(s.Assertions))
			for i, a := range s.Assertions {
				step.Assertions[i] = JSONAssertion{
					Assertion: a.Assertion.Raw,
					Passed:    a.Passed,
					Actual:    a.Actual,
					Message:   a.Message,
				}
			}
		}

		if len(s.Captures) > 0 {
			step.Captures = s.Captures
		}

		if s.DBCheck != nil {
			step.DB = &JSONDBCheck{
				Query:    s.DBCheck.Query,
				Passed:   s.DBCheck.Passed,
				Failures: s.DBCheck.Failures,
			}
		}

		run.Steps = append(run.Steps, step)
	}

	f.runs = append(f.runs, run)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors surface on the steps that produced them.
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header in JSON output.
}

// Flush writes the accumulated document.
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, run := range f.runs {
		summary.Passed += run.Passed
		summary.Failed += run.Failed
		summary.Skipped += run.Skipped
	}
	summary.Total = summary.Passed + summary.Failed + summary.Skipped

	doc := JSONOutput{
		Summary:  summary,
		Runs:     f.runs,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
