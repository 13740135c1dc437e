package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIRoot       = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel         = "gemini-2.5-flash-preview-05-20"
	DefaultListenAddress = "127.0.0.1:8080"
	DefaultMaxRetries    = 3
	DefaultInitialDelay  = 1000 * time.Millisecond
	DefaultMaxDelay      = 30 * time.Second
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"api_key":             "GEMINI_API_KEY",
	"api_root":            "GEMINI_API_ROOT",
	"model":               "GEMINI_MODEL",
	"listen_address":      "LISTEN_ADDRESS",
	"upstream_timeout":    "UPSTREAM_TIMEOUT",
	"retry.max_retries":   "RETRY_MAX_RETRIES",
	"retry.initial_delay": "RETRY_INITIAL_DELAY",
	"retry.max_delay":     "RETRY_MAX_DELAY",
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment. A missing API key is not an error here: the handler rejects
// requests itself so the process can still start and report the problem.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("api_root", DefaultAPIRoot)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("upstream_timeout", time.Duration(0))
	v.SetDefault("retry.max_retries", DefaultMaxRetries)
	v.SetDefault("retry.initial_delay", DefaultInitialDelay)
	v.SetDefault("retry.max_delay", DefaultMaxDelay)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	// Read in the config file
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var configuration Config
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	configuration.APIKey = strings.TrimSpace(configuration.APIKey)
	configuration.APIRoot = strings.TrimRight(strings.TrimSpace(configuration.APIRoot), "/")

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate checks the fields that have no usable fallback.
func (c *Config) Validate() error {
	if c.APIRoot == "" {
		return errors.New("api_root is required")
	}
	if _, err := url.Parse(c.APIRoot); err != nil {
		return fmt.Errorf("api_root is not a valid URL: %w", err)
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if _, err := url.Parse(c.Endpoint()); err != nil {
		return fmt.Errorf("api_root and model do not form a valid URL: %w", redact(err))
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry.initial_delay must be positive, got %s", c.Retry.InitialDelay)
	}
	if c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry.max_delay must not be negative, got %s", c.Retry.MaxDelay)
	}
	return nil
}

// HasAPIKey reports whether a credential was configured.
func (c *Config) HasAPIKey() bool {
	return c != nil && c.APIKey != ""
}

// Endpoint returns the generateContent URL with the credential as the key query parameter.
func (c *Config) Endpoint() string {
	q := url.Values{}
	q.Set("key", c.APIKey)
	return fmt.Sprintf("%s/%s:generateContent?%s", c.APIRoot, c.Model, q.Encode())
}

// redact drops everything after the path from a URL parse error, so the
// credential in the key parameter stays out of error messages.
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u := uerr.URL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return &url.Error{Op: uerr.Op, URL: u, Err: uerr.Err}
}
