package stress

import (
	"context"
	"sync"
	"time"

	"github.com/calvale/webwalk/packages/core/runner"
	"github.com/calvale/webwalk/packages/core/walk"
)

// Runner replays one walk as concurrent sessions. Every session is a
// full pass through the walk on its own client and resolver, exactly as
// a normal run would execute it, so an interactive flow and its load
// profile never drift apart.
type Runner struct {
	config    *Config
	core      *runner.Runner
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReporter attaches a console reporter for progress and summary
// output. Without one the run is silent.
func WithReporter(rep *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = rep
	}
}

// NewRunner creates a load runner. The core config is copied, and setup
// and teardown hooks are forced off per session; Run executes them once
// around the whole load instead.
func NewRunner(cfg *Config, coreCfg *runner.Config, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cc runner.Config
	if coreCfg != nil {
		cc = *coreCfg
	}
	cc.SkipHooks = true
	cc.ThinkTime = cfg.ThinkTime

	maxConcurrent := cfg.MaxVUs
	sessionsPerSec := 0.0
	if cfg.Mode == RateMode {
		sessionsPerSec = cfg.Rate
	} else {
		maxConcurrent = cfg.VUs
	}

	r := &Runner{
		config:    cfg,
		core:      runner.New(&cc),
		scheduler: NewScheduler(sessionsPerSec, maxConcurrent),
		metrics:   NewMetrics(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Result holds the outcome of a load run.
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures returns true if any threshold was violated.
func (r *Result) HasThresholdFailures() bool {
	for _, t := range r.Thresholds {
		if !t.Passed {
			return true
		}
	}
	return false
}

// Run executes the load against one walk. Setup hooks and the wait_for
// probe run once before the load starts, teardown hooks once after all
// sessions drain. Cancelling the context stops new sessions; in-flight
// sessions finish their walk.
func (r *Runner) Run(ctx context.Context, w *walk.Walk) (*Result, error) {
	if err := r.core.Preflight(w); err != nil {
		return nil, err
	}
	defer r.core.Cleanup(w)

	if r.reporter != nil {
		r.reporter.Header(w, r.config)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	var progressDone chan struct{}
	if r.reporter != nil {
		progressDone = make(chan struct{})
		go r.progressLoop(runCtx, progressDone)
	}

	var wg sync.WaitGroup
	if r.config.Mode == VUMode {
		r.runVUMode(runCtx, &wg, w)
	} else {
		r.runRateMode(runCtx, &wg, w)
	}
	wg.Wait()
	cancel()

	if progressDone != nil {
		<-progressDone
	}

	summary := r.metrics.GetSummary()
	result := &Result{Summary: summary, Passed: true}

	if r.config.Thresholds.HasThresholds() {
		result.Thresholds = summary.EvaluateThresholds(r.config.Thresholds)
		result.Passed = !result.HasThresholdFailures()
	}

	if r.reporter != nil {
		r.reporter.ClearProgress()
		r.reporter.Summary(summary, result.Thresholds)
	}

	return result, nil
}

// runRateMode starts sessions at a fixed rate until the context ends.
// The semaphore keeps a slow application from piling up sessions faster
// than they finish.
func (r *Runner) runRateMode(ctx context.Context, wg *sync.WaitGroup, w *walk.Walk) {
	for {
		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}
		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.scheduler.Release()
			r.runSession(w)
		}()
	}
}

// runVUMode keeps a fixed pool of virtual users looping the walk.
func (r *Runner) runVUMode(ctx context.Context, wg *sync.WaitGroup, w *walk.Walk) {
	for i := 0; i < r.config.VUs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.runSession(w)
			}
		}()
	}
}

// runSession executes one full pass through the walk and records its
// metrics. Session latency is the sum of step durations, so think time
// and scheduling gaps never inflate the percentiles.
func (r *Runner) runSession(w *walk.Walk) {
	r.metrics.IncActiveVUs()
	defer r.metrics.DecActiveVUs()

	result, err := r.core.RunWalk(w)
	if err != nil {
		r.metrics.RecordSession(0, true)
		return
	}

	var latency time.Duration
	for _, s := range result.Steps {
		if s.Skipped {
			continue
		}
		latency += s.Duration
		r.metrics.RecordStep(s.Name, s.Duration, !s.Passed)
	}

	r.metrics.RecordSession(latency, result.Failed > 0)
}

// progressLoop redraws the progress block until the run context ends.
func (r *Runner) progressLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration)
		}
	}
}
