package sonargate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SONARQUBE_URL", "https://sonar.example.com")
	t.Setenv("SONARQUBE_TOKEN", "squ_abcdef123456")
	t.Setenv("SONARQUBE_MAX_RETRIES", "5")
	t.Setenv("SONARQUBE_RATE_CAPACITY", "20")
	t.Setenv("SONARQUBE_TTL_ISSUES", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://sonar.example.com", cfg.BaseURL)
	assert.Equal(t, "squ_abcdef123456", cfg.Token)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 20, cfg.RateCapacity)
	assert.Equal(t, 30*time.Second, cfg.TTLOverrides["issues"])

	// Untouched fields keep their documented defaults.
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 1000, cfg.MaxEntries)
}

func TestLoadConfigMissingTokenFails(t *testing.T) {
	t.Setenv("SONARQUBE_URL", "https://sonar.example.com")
	t.Setenv("SONARQUBE_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestConfigValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{
		BaseURL:        "not a url",
		RequestTimeout: time.Second,
		ConnectTimeout: time.Second,
		MaxRetries:     -1,
		BaseDelay:      time.Second,
		MaxDelay:       time.Millisecond,
		JitterFraction: 2,
		RateCapacity:   1,
		RefillPerSec:   1,
		AcquireTimeout: time.Second,
		MaxEntries:     1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
	assert.Contains(t, err.Error(), "not an absolute URL")
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "max_delay")
	assert.Contains(t, err.Error(), "jitter")
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{BaseURL: "https://sonar.example.com", Token: "tok"}
	cfg.setDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10, cfg.RateCapacity)
	assert.Equal(t, 5.0, cfg.RefillPerSec)
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeout)
}

func TestConfigZeroJitterIsPreserved(t *testing.T) {
	cfg := Config{BaseURL: "https://sonar.example.com", Token: "tok", JitterFraction: 0}
	cfg.setDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.0, cfg.JitterFraction)
	assert.Equal(t, 0.0, cfg.retryPolicy().JitterFraction)
}

func TestConfigRetryPolicy(t *testing.T) {
	cfg := Config{
		BaseURL:        "https://sonar.example.com",
		Token:          "tok",
		MaxRetries:     4,
		BaseDelay:      50 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		JitterFraction: 0.2,
	}
	cfg.setDefaults()

	policy := cfg.retryPolicy()
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 2*time.Second, policy.MaxDelay)
	assert.Equal(t, 0.2, policy.JitterFraction)
	assert.True(t, policy.RetryableStatusCodes[503])
}

func TestConfigInvalidTTLOverride(t *testing.T) {
	cfg := Config{
		BaseURL:      "https://sonar.example.com",
		Token:        "tok",
		TTLOverrides: map[string]time.Duration{"issues": -time.Second},
	}
	cfg.setDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ttl override for "issues"`)
}
