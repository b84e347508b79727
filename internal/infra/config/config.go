// Package config resolves runtime configuration for the MMAudio adapter from
// environment variables, with an optional YAML file providing fallback values.
// Resolution happens once at process start; the resulting Config is immutable
// and safe to share across concurrent tool invocations.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved runtime configuration.
type Config struct {
	// APIKey authenticates requests against the MMAudio API. It may be empty
	// after Load; callers that need it surface a configuration error per call
	// so that validate_api_key with an explicit override stays usable.
	APIKey string

	// BaseURL is the upstream API root, without a trailing slash.
	BaseURL string

	// Timeout bounds each generation request.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts for transient upstream
	// failures (5xx or transport errors). Zero disables retrying.
	MaxRetries int

	// RetryBase is the backoff delay before the first retry; it doubles on
	// each subsequent attempt.
	RetryBase time.Duration
}

const (
	envKeyAPIKey      = "API_KEY"
	envKeyBaseURL     = "BASE_URL"
	envKeyTimeoutMS   = "TIMEOUT_MS"
	envKeyMaxRetries  = "MAX_RETRIES"
	envKeyRetryBaseMS = "RETRY_BASE_MS"
)

const (
	defaultBaseURL    = "https://mmaudio.net"
	defaultTimeout    = 60 * time.Second
	minTimeout        = 5 * time.Second
	maxTimeout        = 300 * time.Second
	defaultMaxRetries = 2
	maxMaxRetries     = 5
	defaultRetryBase  = 500 * time.Millisecond
	minRetryBase      = 100 * time.Millisecond
	maxRetryBaseBound = 5 * time.Second
)

var (
	// ErrInvalidBaseURL is returned when BASE_URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("BASE_URL must be an absolute http or https URL")
	// ErrInvalidTimeout is returned when TIMEOUT_MS is not an integer or falls
	// outside the accepted range.
	ErrInvalidTimeout = errors.New("TIMEOUT_MS must be an integer between 5000 and 300000")
)

// fileConfig mirrors the optional YAML config file. Environment variables
// always win over file values.
type fileConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	TimeoutMS   int    `yaml:"timeout_ms"`
	MaxRetries  *int   `yaml:"max_retries"`
	RetryBaseMS int    `yaml:"retry_base_ms"`
}

// Load resolves configuration from environment variables alone.
func Load() (Config, error) {
	return resolve(fileConfig{})
}

// LoadWithFile resolves configuration from environment variables layered over
// the YAML file at path.
func LoadWithFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return resolve(fc)
}

// resolve merges env values over file values and validates the result.
func resolve(fc fileConfig) (Config, error) {
	cfg := Config{
		APIKey:  strings.TrimSpace(envOr(envKeyAPIKey, fc.APIKey)),
		BaseURL: strings.TrimRight(envOr(envKeyBaseURL, coalesce(fc.BaseURL, defaultBaseURL)), "/"),
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return Config{}, err
	}

	timeout, err := durationMS(envKeyTimeoutMS, fc.TimeoutMS, defaultTimeout)
	if err != nil {
		return Config{}, err
	}
	if timeout < minTimeout || timeout > maxTimeout {
		return Config{}, fmt.Errorf("%w: got %d", ErrInvalidTimeout, timeout.Milliseconds())
	}
	cfg.Timeout = timeout

	retries := defaultMaxRetries
	if fc.MaxRetries != nil {
		retries = *fc.MaxRetries
	}
	if v := os.Getenv(envKeyMaxRetries); v != "" {
		parsed, parseErr := strconv.Atoi(v)
		if parseErr != nil {
			return Config{}, fmt.Errorf("%s must be an integer: %w", envKeyMaxRetries, parseErr)
		}
		retries = parsed
	}
	cfg.MaxRetries = clampInt(retries, 0, maxMaxRetries)

	retryBase, err := durationMS(envKeyRetryBaseMS, fc.RetryBaseMS, defaultRetryBase)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBase = clampDuration(retryBase, minRetryBase, maxRetryBaseBound)

	return cfg, nil
}

// validateBaseURL requires an absolute http(s) URL with a host.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: got %q", ErrInvalidBaseURL, raw)
	}
	return nil
}

// durationMS reads a millisecond env var, falling back to the file value and
// then to def. A non-integer env value is an error.
func durationMS(envKey string, fileMS int, def time.Duration) (time.Duration, error) {
	if v := os.Getenv(envKey); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			if envKey == envKeyTimeoutMS {
				return 0, fmt.Errorf("%w: got %q", ErrInvalidTimeout, v)
			}
			return 0, fmt.Errorf("%s must be an integer: %w", envKey, err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	if fileMS > 0 {
		return time.Duration(fileMS) * time.Millisecond, nil
	}
	return def, nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// coalesce returns val if non-empty, otherwise fallback.
func coalesce(val, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
