package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/assertions"
	"github.com/calvale/webwalk/packages/capture"
	"github.com/calvale/webwalk/packages/core/config"
	"github.com/calvale/webwalk/packages/core/env"
	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/webclient"
)

// Config tunes a Runner. Zero values defer to the project config, then
// the walk file, then the built-in defaults.
type Config struct {
	Project     *config.Config
	Environment string
	BaseURL     string
	NameFilter  string
	Bail        bool
	Timeout     time.Duration
	Insecure    bool
	Logger      *slog.Logger

	// SkipHooks leaves setup and teardown commands to the caller. Stress
	// mode sets it and runs them once around the whole load instead of
	// once per session.
	SkipHooks bool

	// ThinkTime pauses between steps. Stress mode uses it to pace
	// simulated users.
	ThinkTime time.Duration
}

type Runner struct {
	config *Config
	logger *slog.Logger
}

func New(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Project == nil {
		cfg.Project = &config.Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{config: cfg, logger: logger}
}

// RunResult is the outcome of one walk.
type RunResult struct {
	File     string
	Walk     string
	Steps    []*StepResult
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
}

// StepResult is the outcome of one step.
type StepResult struct {
	Name       string
	Line       int
	Skipped    bool
	SkipReason string
	Passed     bool
	Duration   time.Duration
	Result     *webclient.Result
	Assertions []*assertions.Result
	Captures   map[string]string
	DBCheck    *DBCheckResult
	Error      error
}

func (r *Runner) RunFile(path string) (*RunResult, error) {
	w, err := walk.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.RunWalk(w)
}

// RunWalk executes all steps of one walk on a fresh client, so cookies
// and sessions never leak between walks.
func (r *Runner) RunWalk(w *walk.Walk) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{File: w.Path, Walk: w.Name}

	resolver, baseURL, err := r.sessionEnv(w)
	if err != nil {
		return nil, err
	}

	client, err := r.buildClient(baseURL, w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}

	baseDir := walkDir(w)

	if !r.config.SkipHooks {
		if err := r.runHooks(w.Setup, baseDir, resolver); err != nil {
			return nil, fmt.Errorf("%s: setup: %w", w.Name, err)
		}
		defer func() {
			if err := r.runHooks(w.Teardown, baseDir, resolver); err != nil {
				r.logger.Warn("teardown failed", "walk", w.Name, "error", err)
			}
		}()

		if err := r.waitForApp(w.WaitFor, baseURL, resolver); err != nil {
			return nil, fmt.Errorf("%s: %w", w.Name, err)
		}
	}

	for i, step := range w.Steps {
		if r.config.NameFilter != "" && !matchesFilter(step.Name, r.config.NameFilter) {
			result.Steps = append(result.Steps, &StepResult{
				Name: step.Name, Line: step.Line, Skipped: true, SkipReason: "filtered out",
			})
			result.Skipped++
			continue
		}
		if step.Skip != "" {
			result.Steps = append(result.Steps, &StepResult{
				Name: step.Name, Line: step.Line, Skipped: true, SkipReason: step.Skip,
			})
			result.Skipped++
			continue
		}

		sr := r.runStep(step, client, resolver, baseDir)
		result.Steps = append(result.Steps, sr)

		if sr.Passed {
			result.Passed++
		} else {
			result.Failed++
			if r.config.Bail {
				break
			}
		}

		if r.config.ThinkTime > 0 && i < len(w.Steps)-1 {
			time.Sleep(r.config.ThinkTime)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Preflight runs a walk's setup commands and wait_for probe without
// executing any steps. Stress mode prepares the application once before
// the load starts.
func (r *Runner) Preflight(w *walk.Walk) error {
	resolver, baseURL, err := r.sessionEnv(w)
	if err != nil {
		return err
	}
	if err := r.runHooks(w.Setup, walkDir(w), resolver); err != nil {
		return fmt.Errorf("%s: setup: %w", w.Name, err)
	}
	if err := r.waitForApp(w.WaitFor, baseURL, resolver); err != nil {
		return fmt.Errorf("%s: %w", w.Name, err)
	}
	return nil
}

// Cleanup runs a walk's teardown commands, logging failures instead of
// returning them.
func (r *Runner) Cleanup(w *walk.Walk) {
	resolver, _, err := r.sessionEnv(w)
	if err != nil {
		r.logger.Warn("teardown skipped", "walk", w.Name, "error", err)
		return
	}
	if err := r.runHooks(w.Teardown, walkDir(w), resolver); err != nil {
		r.logger.Warn("teardown failed", "walk", w.Name, "error", err)
	}
}

// sessionEnv builds the resolver and effective base URL for one run of
// a walk. Every call returns a fresh resolver, so concurrent runs never
// share captures.
func (r *Runner) sessionEnv(w *walk.Walk) (*env.Resolver, string, error) {
	environment, err := r.config.Project.Environment(r.config.Environment)
	if err != nil {
		return nil, "", err
	}

	baseURL := firstNonEmpty(r.config.BaseURL, environment.BaseURL, w.BaseURL)
	if baseURL == "" {
		return nil, "", fmt.Errorf("%s: no base URL (set base_url in the walk, baseUrl in the environment, or --base-url)", w.Name)
	}

	resolver := env.NewResolver()
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn(fmt.Sprintf(format, args...), "walk", w.Name)
	})
	resolver.SetVariables(env.MergeVars(environment.Vars, w.Vars, env.SystemVars()))

	return resolver, baseURL, nil
}

func (r *Runner) runStep(step *walk.Step, client *webclient.Client, resolver *env.Resolver, baseDir string) *StepResult {
	sr := &StepResult{Name: step.Name, Line: step.Line}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	path, isRequest := step.RequestPath()
	if !isRequest {
		sr.DBCheck = r.runDBCheck(step.DB, resolver, baseDir)
		sr.Passed = sr.DBCheck.Passed
		return sr
	}

	req, err := r.buildRequest(step, path, resolver)
	if err != nil {
		sr.Error = err
		return sr
	}

	res, cerr := client.Do(req)
	sr.Result = res

	var fault *webclient.FaultError
	var status *webclient.StatusError
	switch {
	case cerr == nil:
		if len(step.Expect) > 0 {
			sr.Assertions = r.evaluate(step, res, client, resolver, baseDir)
			sr.Passed = allPassed(sr.Assertions)
		} else {
			sr.Passed = true
		}
	case errors.As(cerr, &fault):
		// The application flagged the exchange; nothing can redeem it.
		sr.Error = cerr
	case errors.As(cerr, &status) && len(step.Expect) > 0:
		// The walk said what to expect of this page; the assertions
		// decide whether the error status was the point.
		sr.Assertions = r.evaluate(step, res, client, resolver, baseDir)
		sr.Passed = allPassed(sr.Assertions)
	default:
		sr.Error = cerr
	}

	// Captures run whenever an exchange produced a result, even a failed
	// one, so later steps and teardown can still use what came back.
	if res != nil && len(step.Capture) > 0 {
		values, err := capture.ExtractAll(res, client.State(), step.Capture)
		sr.Captures = values
		for name, value := range values {
			resolver.SetCapture(step.Name, name, value)
		}
		if err != nil {
			sr.Passed = false
			if sr.Error == nil {
				sr.Error = err
			}
		}
	}

	if step.DB != nil && sr.Passed {
		sr.DBCheck = r.runDBCheck(step.DB, resolver, baseDir)
		if !sr.DBCheck.Passed {
			sr.Passed = false
		}
	}

	return sr
}

func (r *Runner) evaluate(step *walk.Step, res *webclient.Result, client *webclient.Client, resolver *env.Resolver, baseDir string) []*assertions.Result {
	evaluator := assertions.NewEvaluator(res, client.State(), baseDir)
	return evaluator.Evaluate(resolver.ResolveSlice(step.Expect))
}

func allPassed(results []*assertions.Result) bool {
	for _, a := range results {
		if !a.Passed {
			return false
		}
	}
	return true
}

func (r *Runner) buildRequest(step *walk.Step, path string, resolver *env.Resolver) (*webclient.Request, error) {
	req := &webclient.Request{
		Path:    resolver.Resolve(path),
		Charset: step.Charset,
	}

	if step.Method != "" {
		req.Method = strings.ToUpper(step.Method)
	} else if step.Post != "" {
		req.Method = http.MethodPost
	}

	if step.Form != nil {
		form := url.Values{}
		for key, value := range step.Form {
			switch v := value.(type) {
			case []any:
				for _, item := range v {
					form.Add(key, resolver.Resolve(fmt.Sprintf("%v", item)))
				}
			default:
				form.Add(key, resolver.Resolve(fmt.Sprintf("%v", v)))
			}
		}
		req.Form = form
	}

	if step.Body != "" {
		req.Body = resolver.Resolve(step.Body)
	}

	if len(step.Headers) > 0 {
		header := http.Header{}
		for key, value := range step.Headers {
			switch v := value.(type) {
			case []any:
				for _, item := range v {
					header.Add(key, resolver.Resolve(fmt.Sprintf("%v", item)))
				}
			default:
				header.Add(key, resolver.Resolve(fmt.Sprintf("%v", v)))
			}
		}
		req.Headers = header
	}

	if step.Cookies != nil {
		cookies := make(map[string]string, len(*step.Cookies))
		for name, value := range *step.Cookies {
			cookies[name] = resolver.Resolve(value)
		}
		req.Cookies = cookies
	}

	if step.Auth != nil {
		req.Auth = &webclient.BasicAuth{
			Username: resolver.Resolve(step.Auth.Username),
			Password: resolver.Resolve(step.Auth.Password),
		}
	}

	if step.Timeout != "" {
		d, err := time.ParseDuration(step.Timeout)
		if err != nil {
			return nil, fmt.Errorf("step %q: bad timeout %q: %w", step.Name, step.Timeout, err)
		}
		req.Timeout = d
	}

	return req, nil
}

func (r *Runner) buildClient(baseURL string, w *walk.Walk) (*webclient.Client, error) {
	project := r.config.Project
	settings := w.Client
	if settings == nil {
		settings = &walk.ClientSettings{}
	}

	var opts []webclient.Option

	timeout, err := r.timeout(settings)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts = append(opts, webclient.WithTimeout(timeout))
	}

	follow := project.GetFollowRedirects()
	if settings.FollowRedirects != nil {
		follow = *settings.FollowRedirects
	}
	opts = append(opts, webclient.WithFollowRedirects(follow))

	postbacks := project.GetPostbacks()
	if settings.Postbacks != nil {
		postbacks = *settings.Postbacks
	}
	opts = append(opts, webclient.WithPostbacks(postbacks))

	if r.config.Insecure || settings.Insecure {
		opts = append(opts, webclient.WithInsecureTLS(true))
	}

	headers := make(map[string]string, len(project.Headers)+len(settings.Headers))
	for k, v := range project.Headers {
		headers[k] = v
	}
	for k, v := range settings.Headers {
		headers[k] = v
	}
	if len(headers) > 0 {
		opts = append(opts, webclient.WithDefaultHeaders(headers))
	}

	if pattern := firstNonEmpty(settings.SessionPattern, project.SessionPattern); pattern != "" {
		opts = append(opts, webclient.WithSessionPattern(pattern))
	}
	if fault := firstNonEmpty(settings.FaultHeader, project.FaultHeader); fault != "" {
		opts = append(opts, webclient.WithFaultHeader(fault))
	}
	if settings.Scanner == "dom" {
		opts = append(opts, webclient.WithFormScanner(webclient.DOMScanner{}))
	}
	opts = append(opts, webclient.WithLogger(r.logger))

	return webclient.New(baseURL, opts...)
}

// timeout picks the effective client timeout: flag, then walk, then
// project config. Zero keeps the client default.
func (r *Runner) timeout(settings *walk.ClientSettings) (time.Duration, error) {
	if r.config.Timeout > 0 {
		return r.config.Timeout, nil
	}
	for _, raw := range []string{settings.Timeout, r.config.Project.Timeout} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("bad timeout %q: %w", raw, err)
		}
		return d, nil
	}
	return 0, nil
}

// matchesFilter matches a step name against a -n pattern with optional
// leading or trailing "*".
func matchesFilter(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	starPrefix := strings.HasPrefix(pattern, "*")
	starSuffix := strings.HasSuffix(pattern, "*")
	trimmed := strings.Trim(pattern, "*")
	switch {
	case starPrefix && starSuffix:
		return strings.Contains(name, trimmed)
	case starPrefix:
		return strings.HasSuffix(name, trimmed)
	case starSuffix:
		return strings.HasPrefix(name, trimmed)
	}
	return name == pattern
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func walkDir(w *walk.Walk) string {
	if w.Path == "" {
		return "."
	}
	return filepath.Dir(w.Path)
}
