package config

import "time"

// RetryConfigEntry holds the backoff settings for upstream calls.
type RetryConfigEntry struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// Config holds the application configuration.
type Config struct {
	APIKey          string           `mapstructure:"api_key"`
	APIRoot         string           `mapstructure:"api_root"`
	Model           string           `mapstructure:"model"`
	ListenAddress   string           `mapstructure:"listen_address"`
	UpstreamTimeout time.Duration    `mapstructure:"upstream_timeout"`
	Retry           RetryConfigEntry `mapstructure:"retry"`
}
