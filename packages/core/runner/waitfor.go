package runner

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/core/env"
	"github.com/calvale/webwalk/packages/core/walk"
)

// waitForApp polls a URL until it answers with the wanted status, so
// setup can boot the application asynchronously.
func (r *Runner) waitForApp(cfg *walk.WaitFor, baseURL string, resolver *env.Resolver) error {
	if cfg == nil {
		return nil
	}

	target := resolver.Resolve(cfg.URL)
	if strings.HasPrefix(target, "/") {
		target = baseURL + target
	}

	wantStatus := cfg.Status
	if wantStatus == 0 {
		wantStatus = http.StatusOK
	}
	timeout, err := durationOr(cfg.Timeout, 30*time.Second)
	if err != nil {
		return fmt.Errorf("wait_for: bad timeout %q", cfg.Timeout)
	}
	interval, err := durationOr(cfg.Interval, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("wait_for: bad interval %q", cfg.Interval)
	}

	r.logger.Debug("waiting for application", "url", target, "status", wantStatus, "timeout", timeout)

	client := &http.Client{Timeout: 5 * time.Second}
	deadline := time.Now().Add(timeout)

	var lastErr error
	lastStatus := 0
	for time.Now().Before(deadline) {
		resp, err := client.Get(target)
		if err != nil {
			lastErr = err
			time.Sleep(interval)
			continue
		}
		lastStatus = resp.StatusCode
		resp.Body.Close()
		if resp.StatusCode == wantStatus {
			return nil
		}
		time.Sleep(interval)
	}

	if lastStatus == 0 && lastErr != nil {
		return fmt.Errorf("waiting for %s: %v", target, lastErr)
	}
	return fmt.Errorf("waiting for %s: want status %d, last was %d", target, wantStatus, lastStatus)
}

func durationOr(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
