package stress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, RateMode, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, float64(5), cfg.Rate)
	assert.Equal(t, 50, cfg.MaxVUs)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero duration",
			mutate:  func(c *Config) { c.Duration = 0 },
			wantErr: "duration",
		},
		{
			name:    "rate mode without rate",
			mutate:  func(c *Config) { c.Rate = 0 },
			wantErr: "rate",
		},
		{
			name: "vu mode without VUs",
			mutate: func(c *Config) {
				c.Mode = VUMode
				c.VUs = 0
			},
			wantErr: "VUs",
		},
		{
			name:    "zero maxVUs",
			mutate:  func(c *Config) { c.MaxVUs = 0 },
			wantErr: "maxVUs",
		},
		{
			name:    "negative think time",
			mutate:  func(c *Config) { c.ThinkTime = -time.Second },
			wantErr: "think time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	th, err := ParseThresholds("p95<800ms,errors<1%,p99<2s")
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, th.P95)
	assert.Equal(t, 2*time.Second, th.P99)
	assert.InDelta(t, 0.01, th.FailureRate, 1e-9)
	assert.True(t, th.HasThresholds())
}

func TestParseThresholdsAllMetrics(t *testing.T) {
	th, err := ParseThresholds("p50<100ms, p90 <= 150ms, max<5s, failures<0.05, rate>10")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, th.P50)
	assert.Equal(t, 150*time.Millisecond, th.P90)
	assert.Equal(t, 5*time.Second, th.MaxLatency)
	assert.InDelta(t, 0.05, th.FailureRate, 1e-9)
	assert.InDelta(t, 10, th.MinRate, 1e-9)
}

func TestParseThresholdsEmpty(t *testing.T) {
	th, err := ParseThresholds("")
	require.NoError(t, err)
	assert.False(t, th.HasThresholds())
}

func TestParseThresholdsErrors(t *testing.T) {
	cases := map[string]string{
		"p95>800ms":   "must use < or <=",
		"p95<soon":    "invalid duration",
		"rate<5":      "must use > or >=",
		"errors<lots": "invalid failure rate",
		"widgets<3":   "unknown threshold metric",
		"nonsense":    "invalid threshold format",
	}

	for input, want := range cases {
		_, err := ParseThresholds(input)
		require.Error(t, err, input)
		assert.Contains(t, err.Error(), want, input)
	}
}

func TestHasThresholds(t *testing.T) {
	var th Thresholds
	assert.False(t, th.HasThresholds())

	th.MinRate = 2
	assert.True(t, th.HasThresholds())
}
