package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/core/config"
	"github.com/calvale/webwalk/packages/core/env"
	"github.com/calvale/webwalk/packages/core/runner"
	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run walks against an application",
	Long: `Run walks defined in .walk.yaml files. Without arguments, the
working directory is searched recursively.

Examples:
  webwalk run
  webwalk run login.walk.yaml
  webwalk run ./walks/ --env staging
  webwalk run checkout.walk.yaml -n "submit*"
  webwalk run ./walks/ -o junit --output-file report.xml
  webwalk run ./walks/ --watch

Stress Mode:
  webwalk run checkout.walk.yaml --stress --duration 1m --rate 20
  webwalk run checkout.walk.yaml --stress --vus 50 --think-time 500ms
  webwalk run checkout.walk.yaml --stress -d 1m -r 20 --threshold "p95<800ms,errors<1%"`,
	Args: cobra.ArbitraryArgs,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag        string
	envFileFlag    string
	configFlag     string
	baseURLFlag    string
	nameFlag       string
	verboseFlag    int // 0=off, 1=-v, 2=-vv for more detail
	quietFlag      bool
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	bailFlag       bool
	timeoutFlag    string
	insecureFlag   bool
	watchFlag      bool
	logFileFlag    string
	logJSONFlag    bool

	// Stress mode flags
	stressFlag           bool
	stressDurationFlag   string
	stressRateFlag       float64
	stressVUsFlag        int
	stressMaxVUsFlag     int
	stressThinkTimeFlag  string
	stressThresholdFlag  string
	stressNoProgressFlag bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("WEBWALK_ENV", ""), "Environment to use (env: WEBWALK_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("WEBWALK_ENV_FILE", ""), "Path to .env file exported before the run (env: WEBWALK_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("WEBWALK_CONFIG", ""), "Path to config file (env: WEBWALK_CONFIG)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("WEBWALK_BASE_URL", ""), "Base URL, overrides environment and walk (env: WEBWALK_BASE_URL)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only steps matching name pattern (prefix or suffix *)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("WEBWALK_QUIET", false), "Suppress all output except errors (env: WEBWALK_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("WEBWALK_NO_COLOR", false), "Disable colored output (env: WEBWALK_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("WEBWALK_OUTPUT", "console"), "Output format: console, json, junit, tap (env: WEBWALK_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("WEBWALK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: WEBWALK_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&logFileFlag, "log-file", getEnvString("WEBWALK_LOG_FILE", ""), "Write logs to a rotated file instead of stderr (env: WEBWALK_LOG_FILE)")
	runCmd.Flags().BoolVar(&logJSONFlag, "log-json", getEnvBool("WEBWALK_LOG_JSON", false), "Log in JSON format (env: WEBWALK_LOG_JSON)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("WEBWALK_BAIL", false), "Stop a walk on its first failed step (env: WEBWALK_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("WEBWALK_TIMEOUT", ""), "Request timeout, e.g. 30s, 1m (env: WEBWALK_TIMEOUT)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch walk files for changes and re-run")

	// Network flags
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("WEBWALK_INSECURE", false), "Skip TLS certificate verification (env: WEBWALK_INSECURE)")

	// Stress mode flags
	runCmd.Flags().BoolVar(&stressFlag, "stress", false, "Replay one walk as concurrent sessions")
	runCmd.Flags().StringVarP(&stressDurationFlag, "duration", "d", "30s", "Stress run duration, e.g. 30s, 5m")
	runCmd.Flags().Float64VarP(&stressRateFlag, "rate", "r", 5, "Target sessions per second")
	runCmd.Flags().IntVar(&stressVUsFlag, "vus", 0, "Fixed pool of virtual users (alternative to rate)")
	runCmd.Flags().IntVar(&stressMaxVUsFlag, "max-vus", 50, "Maximum concurrent sessions in rate mode")
	runCmd.Flags().StringVar(&stressThinkTimeFlag, "think-time", "0s", "Pause between steps within a session")
	runCmd.Flags().StringVar(&stressThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g. \"p95<800ms,errors<1%\")")
	runCmd.Flags().BoolVar(&stressNoProgressFlag, "no-progress", false, "Disable the live progress display")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that accumulate and write on flush
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// newFormatter builds the formatter for the selected output format.
// Watch mode calls it again per run, because the accumulating formats
// need fresh state.
func newFormatter(outWriter io.Writer) Formatter {
	switch strings.ToLower(outputFlag) {
	case "json":
		opts := []output.JSONOption{}
		if outWriter != nil {
			opts = append(opts, output.JSONWithWriter(outWriter))
		}
		return output.NewJSONFormatter(opts...)
	case "junit":
		opts := []output.JUnitOption{}
		if outWriter != nil {
			opts = append(opts, output.JUnitWithWriter(outWriter))
		}
		return output.NewJUnitFormatter(opts...)
	case "tap":
		opts := []output.TAPOption{}
		if outWriter != nil {
			opts = append(opts, output.TAPWithWriter(outWriter))
		}
		return output.NewTAPFormatter(opts...)
	default: // "console"
		consoleOpts := []output.ConsoleOption{
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(noColorFlag || quietFlag),
		}
		if outWriter != nil {
			consoleOpts = append(consoleOpts, output.WithWriter(outWriter))
		}
		return output.NewConsoleFormatter(consoleOpts...)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger, logCloser := buildLogger(verboseFlag, quietFlag, logJSONFlag, logFileFlag)
	if logCloser != nil {
		defer logCloser.Close()
	}

	// Export .env variables before anything resolves {{placeholders}}.
	if envFileFlag != "" {
		if _, err := env.ExportDotEnv(envFileFlag); err != nil {
			return fmt.Errorf("cannot load env file: %w", err)
		}
	}

	var outWriter io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		outWriter = f
	}

	formatter := newFormatter(outWriter)
	if !quietFlag {
		formatter.FormatHeader(version)
	}

	files, err := walk.Discover(args)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	if len(files) == 0 {
		err := fmt.Errorf("no .walk.yaml files found")
		formatter.FormatError(err)
		return err
	}

	fileConfig, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	if stressFlag {
		return runStressMode(cmd, files, fileConfig, logger)
	}

	var timeout time.Duration
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w (use format like 30s, 1m)", timeoutFlag, err)
		}
	}

	cfg := &runner.Config{
		Project:     fileConfig,
		Environment: envFlag,
		BaseURL:     baseURLFlag,
		NameFilter:  nameFlag,
		Bail:        bailFlag,
		Timeout:     timeout,
		Insecure:    insecureFlag,
		Logger:      logger,
	}

	r := runner.New(cfg)

	// runWalks executes every discovered walk once and reports totals.
	// A walk that fails to load counts separately from failed steps, so
	// the exit code can tell them apart.
	runWalks := func(formatter Formatter) (failed, loadErrors int, duration time.Duration) {
		startTime := time.Now()

		for _, file := range files {
			result, err := r.RunFile(file)
			if err != nil {
				formatter.FormatError(err)
				loadErrors++
				if bailFlag {
					break
				}
				continue
			}

			formatter.FormatResult(result)
			failed += result.Failed

			if bailFlag && result.Failed > 0 {
				break
			}
		}

		return failed, loadErrors, time.Since(startTime)
	}

	totalFailed, loadErrors, totalDuration := runWalks(formatter)

	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(totalDuration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if !watchFlag {
		switch {
		case loadErrors > 0:
			os.Exit(ExitUsageError)
		case totalFailed > 0:
			os.Exit(ExitStepFailure)
		}
		return nil
	}

	// Watch mode: re-run on walk file changes.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				formatter.FormatError(fmt.Errorf("failed to watch %s: %w", dir, err))
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch directories given as arguments, recursively, so new
	// files and subdirectories are picked up.
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Write) && walk.IsWalkFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running walks...\n\n", event.Name)

					// Fresh formatter: the accumulating formats must not
					// mix results from consecutive runs.
					freshFormatter := newFormatter(outWriter)
					_, _, duration := runWalks(freshFormatter)
					if flushable, ok := freshFormatter.(Flushable); ok {
						_ = flushable.Flush(duration)
					}

					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.FormatError(fmt.Errorf("watcher error: %w", err))
		}
	}
}
