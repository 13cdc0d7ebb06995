package sonargate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config enumerates every recognized option for the data-access layer. It is
// validated once at construction; missing or invalid values fail fast.
type Config struct {
	// BaseURL is the SonarQube server root, e.g. https://sonar.example.com.
	BaseURL string `mapstructure:"url"`
	// Token is the bearer token injected on every request. Never logged.
	Token string `mapstructure:"token"`
	// InsecureSkipTLSVerify disables certificate verification for
	// self-signed lab deployments.
	InsecureSkipTLSVerify bool `mapstructure:"insecure_skip_tls_verify"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// MaxRetries is the total attempt budget including the first try.
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	JitterFraction float64       `mapstructure:"jitter"`

	// RateCapacity and RefillPerSec shape the shared token bucket.
	RateCapacity int     `mapstructure:"rate_capacity"`
	RefillPerSec float64 `mapstructure:"refill_rate"`
	// AcquireTimeout bounds how long a call waits for a token.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// MaxEntries bounds the cache before LRU eviction kicks in.
	MaxEntries int `mapstructure:"max_entries"`

	// TTLOverrides replaces the default TTL for named resource types.
	TTLOverrides map[string]time.Duration `mapstructure:"-"`
}

// LoadConfig reads configuration from SONARQUBE_* environment variables with
// the documented defaults, e.g. SONARQUBE_URL, SONARQUBE_TOKEN,
// SONARQUBE_MAX_RETRIES, SONARQUBE_TTL_ISSUES.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("sonarqube")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("url", "")
	v.SetDefault("token", "")
	v.SetDefault("insecure_skip_tls_verify", false)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("base_delay", 100*time.Millisecond)
	v.SetDefault("max_delay", 10*time.Second)
	v.SetDefault("jitter", 0.1)
	v.SetDefault("rate_capacity", 10)
	v.SetDefault("refill_rate", 5.0)
	v.SetDefault("acquire_timeout", 30*time.Second)
	v.SetDefault("max_entries", 1000)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing configuration: %w", err)
	}

	// Per-type TTL overrides, e.g. SONARQUBE_TTL_ISSUES=30s.
	for name := range defaultResources() {
		key := "ttl_" + name
		v.SetDefault(key, time.Duration(0))
		if ttl := v.GetDuration(key); ttl > 0 {
			if cfg.TTLOverrides == nil {
				cfg.TTLOverrides = make(map[string]time.Duration)
			}
			cfg.TTLOverrides[name] = ttl
		}
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults fills zero fields so Config literals in code get the same
// defaults as the environment loader.
func (c *Config) setDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	// JitterFraction is left alone: zero is a valid setting (no jitter), so
	// only the environment loader supplies the 0.1 default.
	if c.RateCapacity == 0 {
		c.RateCapacity = 10
	}
	if c.RefillPerSec == 0 {
		c.RefillPerSec = 5.0
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 1000
	}
}

// Validate checks every recognized option and collects all problems into a
// single error.
func (c Config) Validate() error {
	var problems []string

	if c.BaseURL == "" {
		problems = append(problems, "url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("url %q is not an absolute URL", c.BaseURL))
	}
	if c.Token == "" {
		problems = append(problems, "token is required")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		problems = append(problems, "connect_timeout must be positive")
	}
	if c.MaxRetries < 1 {
		problems = append(problems, "max_retries must be at least 1")
	}
	if c.BaseDelay <= 0 {
		problems = append(problems, "base_delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		problems = append(problems, "max_delay must be >= base_delay")
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.RateCapacity < 1 {
		problems = append(problems, "rate_capacity must be at least 1")
	}
	if c.RefillPerSec <= 0 {
		problems = append(problems, "refill_rate must be positive")
	}
	if c.AcquireTimeout <= 0 {
		problems = append(problems, "acquire_timeout must be positive")
	}
	if c.MaxEntries < 1 {
		problems = append(problems, "max_entries must be at least 1")
	}
	for name, ttl := range c.TTLOverrides {
		if ttl <= 0 {
			problems = append(problems, fmt.Sprintf("ttl override for %q must be positive", name))
		}
	}

	if len(problems) > 0 {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed: " + strings.Join(problems, "; "),
		}
	}
	return nil
}

// retryPolicy derives the orchestrator policy from the configuration.
func (c Config) retryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = c.MaxRetries
	p.BaseDelay = c.BaseDelay
	p.MaxDelay = c.MaxDelay
	p.JitterFraction = c.JitterFraction
	return p
}
