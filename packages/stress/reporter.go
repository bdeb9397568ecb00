package stress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/fatih/color"
)

// progressLines is the height of the live progress block.
const progressLines = 4

// Reporter prints load run progress and results to a terminal.
type Reporter struct {
	writer     io.Writer
	noProgress bool
	noColor    bool
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// NewReporter creates a console reporter.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.noColor {
		color.NoColor = true
	}
	return r
}

// WithReporterWriter sets the output destination.
func WithReporterWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoProgress disables the live progress block. Useful when output
// is piped or captured.
func WithNoProgress(np bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = np
	}
}

// WithNoColor disables colored output.
func WithNoColor(nc bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = nc
	}
}

// Header prints the run banner before the load starts.
func (r *Reporter) Header(w *walk.Walk, cfg *Config) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	title := w.Name
	if title == "" {
		title = w.Path
	}

	fmt.Fprintf(r.writer, "\n%s %s\n", bold("webwalk stress:"), title)

	switch cfg.Mode {
	case VUMode:
		fmt.Fprintf(r.writer, "  %s virtual users for %s\n",
			cyan(fmt.Sprintf("%d", cfg.VUs)), formatDuration(cfg.Duration))
	default:
		fmt.Fprintf(r.writer, "  %s sessions/s for %s, up to %d concurrent\n",
			cyan(formatFloat(cfg.Rate)), formatDuration(cfg.Duration), cfg.MaxVUs)
	}

	if cfg.ThinkTime > 0 {
		fmt.Fprintf(r.writer, "  think time %s between steps\n", cfg.ThinkTime)
	}

	fmt.Fprintln(r.writer)
}

// Progress redraws the four-line progress block in place.
func (r *Reporter) Progress(stats CurrentStats, total time.Duration) {
	if r.noProgress {
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	pct := float64(stats.Elapsed) / float64(total)
	if pct > 1 {
		pct = 1
	}

	failures := fmt.Sprintf("%d", stats.Failures)
	if stats.Failures > 0 {
		failures = red(failures)
	}

	fmt.Fprintf(r.writer, "\r\033[K  %s %3.0f%%  %s / %s\n",
		progressBar(pct, 30), pct*100,
		formatDuration(stats.Elapsed), formatDuration(total))
	fmt.Fprintf(r.writer, "\r\033[K  sessions %s  active %d\n",
		formatNumber(stats.Sessions), stats.ActiveVUs)
	fmt.Fprintf(r.writer, "\r\033[K  rate %s/s  p95 %s\n",
		formatFloat(stats.SessionsPerSec), cyan(formatLatency(stats.P95)))
	fmt.Fprintf(r.writer, "\r\033[K  failures %s\n", failures)
	fmt.Fprintf(r.writer, "\033[%dA", progressLines)
}

// ClearProgress erases the progress block so the summary prints over it.
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	for i := 0; i < progressLines; i++ {
		fmt.Fprint(r.writer, "\r\033[K\n")
	}
	fmt.Fprintf(r.writer, "\033[%dA", progressLines)
}

// Summary prints the final results and threshold verdicts.
func (r *Reporter) Summary(s *Summary, thresholds []ThresholdResult) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(r.writer, "\n%s\n", bold("LOAD SUMMARY"))
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(r.writer, "  duration  %s\n", formatDuration(s.Duration))
	fmt.Fprintf(r.writer, "  sessions  %s (%s/s)\n",
		formatNumber(s.Sessions), formatFloat(s.SessionsPerSec))

	failed := fmt.Sprintf("%s (%s)", formatNumber(s.SessionFailures), formatPercent(s.FailureRate))
	if s.SessionFailures > 0 {
		failed = red(failed)
	}
	fmt.Fprintf(r.writer, "  failed    %s\n", failed)
	fmt.Fprintf(r.writer, "  steps     %s\n", formatNumber(s.Steps))

	if s.Sessions > 0 {
		fmt.Fprintf(r.writer, "\n%s\n", bold("SESSION LATENCY"))
		rows := []struct {
			name  string
			value time.Duration
		}{
			{"min", s.Min},
			{"mean", s.Mean},
			{"p50", s.P50},
			{"p90", s.P90},
			{"p95", s.P95},
			{"p99", s.P99},
			{"max", s.Max},
		}
		for _, row := range rows {
			fmt.Fprintf(r.writer, "  %-5s %s\n", row.name, cyan(formatLatency(row.value)))
		}
	}

	if len(s.StepBreakdown) > 0 {
		fmt.Fprintf(r.writer, "\n%s\n", bold("STEPS"))

		names := make([]string, 0, len(s.StepBreakdown))
		width := 0
		for name := range s.StepBreakdown {
			names = append(names, name)
			if len(name) > width {
				width = len(name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			st := s.StepBreakdown[name]
			fmt.Fprintf(r.writer, "  %-*s  n=%s  p50=%s  p95=%s  max=%s\n",
				width, name, formatNumber(st.Count),
				formatLatency(st.P50), formatLatency(st.P95), formatLatency(st.Max))
		}
	}

	if len(thresholds) > 0 {
		fmt.Fprintf(r.writer, "\n%s\n", bold("THRESHOLDS"))
		for _, t := range thresholds {
			if t.Passed {
				fmt.Fprintf(r.writer, "  %s %s %s (got %s)\n",
					green("✓"), t.Name, t.Expected, t.Actual)
			} else {
				fmt.Fprintf(r.writer, "  %s %s %s (got %s)\n",
					red("✗"), t.Name, t.Expected, t.Actual)
			}
		}
	}

	fmt.Fprintln(r.writer)
}

// Error prints a load run error.
func (r *Reporter) Error(msg string) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(r.writer, "%s %s\n", red("Error:"), msg)
}

// progressBar renders a filled bar of the given width.
func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// formatDuration renders a duration like "30s" or "1m30s" with at most
// one decimal below ten seconds.
func formatDuration(d time.Duration) string {
	if d < 10*time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// formatLatency renders a duration in milliseconds.
func formatLatency(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 10 {
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.0fms", ms)
}

// formatNumber renders an integer with comma grouping.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.1f", f)
}

func formatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
