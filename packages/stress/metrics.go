package stress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds: 1 microsecond to 60 seconds at 3 significant figures.
const (
	histogramMin     = int64(1)
	histogramMax     = int64(60_000_000)
	histogramSigFigs = 3
)

// Metrics collects latency and counter data during a load run. Counters
// use atomics; the histograms share one mutex because HdrHistogram
// recording is not safe for concurrent writers.
type Metrics struct {
	mu sync.Mutex

	sessions        atomic.Int64
	sessionFailures atomic.Int64
	steps           atomic.Int64
	stepFailures    atomic.Int64
	activeVUs       atomic.Int64

	sessionHist *hdrhistogram.Histogram
	stepHists   map[string]*hdrhistogram.Histogram

	start time.Time
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionHist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		stepHists:   make(map[string]*hdrhistogram.Histogram),
		start:       time.Now(),
	}
}

// RecordSession records one completed pass through the walk.
func (m *Metrics) RecordSession(latency time.Duration, failed bool) {
	m.sessions.Add(1)
	if failed {
		m.sessionFailures.Add(1)
	}

	m.mu.Lock()
	_ = m.sessionHist.RecordValue(clampLatency(latency))
	m.mu.Unlock()
}

// RecordStep records one executed step within a session.
func (m *Metrics) RecordStep(name string, latency time.Duration, failed bool) {
	m.steps.Add(1)
	if failed {
		m.stepFailures.Add(1)
	}

	m.mu.Lock()
	h, ok := m.stepHists[name]
	if !ok {
		h = hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
		m.stepHists[name] = h
	}
	_ = h.RecordValue(clampLatency(latency))
	m.mu.Unlock()
}

// clampLatency converts a duration to microseconds within histogram bounds.
func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histogramMin {
		return histogramMin
	}
	if us > histogramMax {
		return histogramMax
	}
	return us
}

// IncActiveVUs marks one more session in flight.
func (m *Metrics) IncActiveVUs() { m.activeVUs.Add(1) }

// DecActiveVUs marks one session finished.
func (m *Metrics) DecActiveVUs() { m.activeVUs.Add(-1) }

// Summary holds the final results of a load run.
type Summary struct {
	Duration        time.Duration
	Sessions        int64
	SessionFailures int64
	Steps           int64
	StepFailures    int64
	SessionsPerSec  float64
	FailureRate     float64

	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StepBreakdown map[string]*StepSummary
}

// StepSummary holds per-step latency figures.
type StepSummary struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// GetSummary computes the final summary.
func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.start)
	sessions := m.sessions.Load()
	failures := m.sessionFailures.Load()

	s := &Summary{
		Duration:        elapsed,
		Sessions:        sessions,
		SessionFailures: failures,
		Steps:           m.steps.Load(),
		StepFailures:    m.stepFailures.Load(),
		StepBreakdown:   make(map[string]*StepSummary, len(m.stepHists)),
	}

	if elapsed > 0 {
		s.SessionsPerSec = float64(sessions) / elapsed.Seconds()
	}
	if sessions > 0 {
		s.FailureRate = float64(failures) / float64(sessions)
	}

	if m.sessionHist.TotalCount() > 0 {
		s.P50 = microseconds(m.sessionHist.ValueAtQuantile(50))
		s.P90 = microseconds(m.sessionHist.ValueAtQuantile(90))
		s.P95 = microseconds(m.sessionHist.ValueAtQuantile(95))
		s.P99 = microseconds(m.sessionHist.ValueAtQuantile(99))
		s.Min = microseconds(m.sessionHist.Min())
		s.Max = microseconds(m.sessionHist.Max())
		s.Mean = time.Duration(m.sessionHist.Mean()) * time.Microsecond
		s.StdDev = time.Duration(m.sessionHist.StdDev()) * time.Microsecond
	}

	for name, h := range m.stepHists {
		if h.TotalCount() == 0 {
			continue
		}
		s.StepBreakdown[name] = &StepSummary{
			Count: h.TotalCount(),
			P50:   microseconds(h.ValueAtQuantile(50)),
			P95:   microseconds(h.ValueAtQuantile(95)),
			P99:   microseconds(h.ValueAtQuantile(99)),
			Max:   microseconds(h.Max()),
		}
	}

	return s
}

func microseconds(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// CurrentStats holds a point-in-time view for progress reporting.
type CurrentStats struct {
	Elapsed        time.Duration
	Sessions       int64
	Failures       int64
	ActiveVUs      int64
	SessionsPerSec float64
	P95            time.Duration
}

// GetCurrentStats returns a snapshot of the run so far.
func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.start)
	sessions := m.sessions.Load()

	stats := CurrentStats{
		Elapsed:   elapsed,
		Sessions:  sessions,
		Failures:  m.sessionFailures.Load(),
		ActiveVUs: m.activeVUs.Load(),
	}

	if elapsed > 0 {
		stats.SessionsPerSec = float64(sessions) / elapsed.Seconds()
	}
	if m.sessionHist.TotalCount() > 0 {
		stats.P95 = microseconds(m.sessionHist.ValueAtQuantile(95))
	}

	return stats
}

// EvaluateThresholds grades the summary against the configured thresholds.
func (s *Summary) EvaluateThresholds(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := []struct {
		name     string
		limit    time.Duration
		observed time.Duration
	}{
		{"p50", t.P50, s.P50},
		{"p90", t.P90, s.P90},
		{"p95", t.P95, s.P95},
		{"p99", t.P99, s.P99},
		{"max", t.MaxLatency, s.Max},
	}

	for _, l := range latency {
		if l.limit <= 0 {
			continue
		}
		results = append(results, ThresholdResult{
			Name:     l.name,
			Passed:   l.observed <= l.limit,
			Expected: "< " + l.limit.String(),
			Actual:   l.observed.Round(time.Millisecond).String(),
		})
	}

	if t.FailureRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "failures",
			Passed:   s.FailureRate <= t.FailureRate,
			Expected: "< " + formatPercent(t.FailureRate),
			Actual:   formatPercent(s.FailureRate),
		})
	}

	if t.MinRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "rate",
			Passed:   s.SessionsPerSec >= t.MinRate,
			Expected: "> " + formatFloat(t.MinRate) + "/s",
			Actual:   formatFloat(s.SessionsPerSec) + "/s",
		})
	}

	return results
}
