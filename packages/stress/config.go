// Package stress replays one walk as many concurrent simulated users.
// Every session runs the whole walk on its own client, so users never
// share cookies or captures, and the resulting latency distribution is
// graded against optional thresholds.
package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExecutionMode defines how sessions are scheduled.
type ExecutionMode int

const (
	// RateMode starts sessions at a constant rate (sessions per second).
	RateMode ExecutionMode = iota
	// VUMode keeps a fixed pool of virtual users looping the walk.
	VUMode
)

// Config holds all configuration for a load run.
type Config struct {
	Mode       ExecutionMode
	Duration   time.Duration
	Rate       float64       // sessions per second (RateMode)
	VUs        int           // number of virtual users (VUMode)
	MaxVUs     int           // cap on concurrent sessions (RateMode)
	ThinkTime  time.Duration // pause between steps within a session
	Thresholds Thresholds    // pass/fail criteria
}

// DefaultConfig returns a Config with usable defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     5,
		MaxVUs:   50,
	}
}

// Validate checks if the config is coherent.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}

	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("VUs must be positive in VU mode")
	}

	if c.Mode == RateMode && c.MaxVUs < 1 {
		return fmt.Errorf("maxVUs must be at least 1")
	}

	if c.ThinkTime < 0 {
		return fmt.Errorf("think time cannot be negative")
	}

	return nil
}

// Thresholds defines pass/fail criteria for a load run. Latency
// thresholds apply to session latency: the summed step durations of one
// full pass through the walk.
type Thresholds struct {
	P50         time.Duration
	P90         time.Duration
	P95         time.Duration
	P99         time.Duration
	MaxLatency  time.Duration
	FailureRate float64 // max fraction of failed sessions (0.0 - 1.0)
	MinRate     float64 // min sessions per second
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<800ms,errors<1%,p99<2s".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	if s == "" {
		return t, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := matches[3]

	latency := map[string]*time.Duration{
		"p50": &t.P50,
		"p90": &t.P90,
		"p95": &t.P95,
		"p99": &t.P99,
		"max": &t.MaxLatency,
	}

	if target, ok := latency[metric]; ok {
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, valueStr)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		*target = d
		return nil
	}

	switch metric {
	case "errors", "failures":
		// Accept a percentage like "1%" or a fraction like "0.01".
		trimmed := strings.TrimSuffix(valueStr, "%")
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("invalid failure rate: %s", valueStr)
		}
		if strings.HasSuffix(valueStr, "%") {
			f = f / 100
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("failure rate threshold must use < or <=")
		}
		t.FailureRate = f

	case "rate", "sessions":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return fmt.Errorf("invalid session rate: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("session rate threshold must use > or >=")
		}
		t.MinRate = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return nil
}

// HasThresholds returns true if any thresholds are configured.
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P90 > 0 || t.P95 > 0 || t.P99 > 0 ||
		t.MaxLatency > 0 || t.FailureRate > 0 || t.MinRate > 0
}

// ThresholdResult holds the result of evaluating one threshold.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}
