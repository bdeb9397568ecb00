package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/calvale/webwalk/packages/core/config"
	"github.com/calvale/webwalk/packages/core/runner"
	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/stress"
	"github.com/spf13/cobra"
)

// runStressMode replays one walk as concurrent sessions. Exactly one
// walk file is required: a load profile is a single flow, repeated.
func runStressMode(cmd *cobra.Command, files []string, fileConfig *config.Config, logger *slog.Logger) error {
	if len(files) != 1 {
		return fmt.Errorf("stress mode drives exactly one walk, got %d files", len(files))
	}

	cfg, err := buildStressConfig(cmd)
	if err != nil {
		return err
	}

	w, err := walk.LoadFile(files[0])
	if err != nil {
		return err
	}

	var timeout time.Duration
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", timeoutFlag, err)
		}
	}

	coreCfg := &runner.Config{
		Project:     fileConfig,
		Environment: envFlag,
		BaseURL:     baseURLFlag,
		Bail:        bailFlag,
		Timeout:     timeout,
		Insecure:    insecureFlag,
		Logger:      logger,
	}

	reporter := stress.NewReporter(
		stress.WithNoColor(noColorFlag),
		stress.WithNoProgress(stressNoProgressFlag || quietFlag),
	)

	stressRunner, err := stress.NewRunner(cfg, coreCfg, stress.WithReporter(reporter))
	if err != nil {
		return err
	}

	// SIGINT stops new sessions and lets in-flight ones drain; the
	// summary still prints for what completed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		interrupted.Store(true)
		fmt.Fprintln(os.Stderr, "\nInterrupted, draining sessions...")
		cancel()
	}()

	result, err := stressRunner.Run(ctx, w)
	if err != nil {
		reporter.Error(err.Error())
		return err
	}

	switch {
	case interrupted.Load():
		os.Exit(ExitInterrupted)
	case result.HasThresholdFailures():
		os.Exit(ExitThresholdViolation)
	}

	return nil
}

// buildStressConfig merges the stress flags over the defaults. Flags
// the user did not set keep the defaults, checked via Changed so that
// explicitly passing a default value still works.
func buildStressConfig(cmd *cobra.Command) (*stress.Config, error) {
	cfg := stress.DefaultConfig()
	flags := cmd.Flags()

	if flags.Changed("duration") {
		d, err := time.ParseDuration(stressDurationFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}

	if flags.Changed("rate") {
		cfg.Rate = stressRateFlag
	}

	if stressVUsFlag > 0 {
		cfg.VUs = stressVUsFlag
		cfg.Mode = stress.VUMode
	}

	if flags.Changed("max-vus") {
		cfg.MaxVUs = stressMaxVUsFlag
	}

	if flags.Changed("think-time") {
		d, err := time.ParseDuration(stressThinkTimeFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid think time: %w", err)
		}
		cfg.ThinkTime = d
	}

	if stressThresholdFlag != "" {
		t, err := stress.ParseThresholds(stressThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	return cfg, nil
}
