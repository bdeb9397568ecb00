package output

import (
	"fmt"
	"io"
	"os"

	"github.com/calvale/webwalk/packages/core/runner"
	"github.com/fatih/color"
)

// formatValue renders an assertion value for display, summarizing
// containers and truncating long strings.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "(nothing)"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.Walk
	if title == "" {
		title = result.File
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Walk: "+title))

	for _, s := range result.Steps {
		if s.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), s.Name)
			if s.SkipReason != "" && s.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", s.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if s.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), s.Name, red(fmt.Sprintf("(%v)", s.Error)))
			continue
		}

		symbol := green("✓")
		if !s.Passed {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, s.Name, cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))

		if f.verbose && s.Result != nil {
			fmt.Fprintf(f.writer, "    %s %s -> %d\n", s.Result.Method, s.Result.URL, s.Result.Status)
		}

		if (!s.Passed || f.verbose) && len(s.Assertions) > 0 {
			for _, a := range s.Assertions {
				if a.Passed {
					if f.verbose {
						fmt.Fprintf(f.writer, "    %s %s\n", green("✓"), a.Assertion.Raw)
					}
					continue
				}
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), a.Assertion.Raw)
				if a.Assertion.Expected != "" {
					fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Assertion.Expected, 100))
				}
				fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
				if a.Message != "" {
					fmt.Fprintf(f.writer, "      %s\n", a.Message)
				}
			}
		}

		if s.DBCheck != nil && !s.DBCheck.Passed {
			fmt.Fprintf(f.writer, "    %s db: %s\n", red("→"), s.DBCheck.Query)
			for _, msg := range s.DBCheck.Failures {
				fmt.Fprintf(f.writer, "      %s\n", msg)
			}
		}

		if f.verbose && len(s.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			for name, value := range s.Captures {
				fmt.Fprintf(f.writer, "      %s = %s\n", name, value)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Steps: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("webwalk"), version)
}
