// Package config handles awsgate.yaml parsing.
//
// Every field is optional; a missing file yields pure defaults so the binary
// works out of the box against a standard ~/.aws setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when awsgate.yaml is absent or silent.
const (
	DefaultRegion        = "us-east-1"
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Config represents an awsgate.yaml file.
type Config struct {
	// Region is the fallback region when neither the tool call nor the
	// profile supplies one.
	Region string `yaml:"region,omitempty"`

	// LoginCommand overrides the external SSO login command. The profile
	// name is appended as "--profile <name>". Default: ["aws", "sso", "login"].
	LoginCommand []string `yaml:"login_command,omitempty"`

	// SSOCacheDir overrides the token cache directory.
	// Default: ~/.aws/sso/cache.
	SSOCacheDir string `yaml:"sso_cache_dir,omitempty"`

	// Retry tunes network-call retries during credential resolution.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// ScriptTimeout bounds one script execution, e.g. "30s".
	// Empty means no enforced timeout.
	ScriptTimeout string `yaml:"script_timeout,omitempty"`

	// Debug configures debug file logging.
	Debug DebugConfig `yaml:"debug,omitempty"`
}

// RetryConfig tunes the linear-backoff retry around SSO and provider calls.
type RetryConfig struct {
	Attempts int    `yaml:"attempts,omitempty"`
	Delay    string `yaml:"delay,omitempty"` // base delay, e.g. "1s"
}

// DebugConfig configures debug log retention.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// Dir returns the awsgate config directory (~/.config/awsgate), honoring
// AWSGATE_CONFIG_DIR for tests and unusual deployments.
func Dir() string {
	if dir := os.Getenv("AWSGATE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".awsgate"
	}
	return filepath.Join(home, ".config", "awsgate")
}

// Load reads awsgate.yaml from path. An absent file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadDefault reads awsgate.yaml from the standard config directory.
func LoadDefault() (*Config, error) {
	return Load(filepath.Join(Dir(), "awsgate.yaml"))
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if len(c.LoginCommand) == 0 {
		c.LoginCommand = []string{"aws", "sso", "login"}
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.Delay == "" {
		c.Retry.Delay = DefaultRetryDelay.String()
	}
}

func (c *Config) validate() error {
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must not be negative (got %d)", c.Retry.Attempts)
	}
	if c.Retry.Delay != "" {
		if _, err := time.ParseDuration(c.Retry.Delay); err != nil {
			return fmt.Errorf("invalid retry.delay %q: %w", c.Retry.Delay, err)
		}
	}
	if c.ScriptTimeout != "" {
		if _, err := time.ParseDuration(c.ScriptTimeout); err != nil {
			return fmt.Errorf("invalid script_timeout %q: %w", c.ScriptTimeout, err)
		}
	}
	return nil
}

// RetryDelay returns the parsed base retry delay.
func (c *Config) RetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Retry.Delay)
	if err != nil {
		return DefaultRetryDelay
	}
	return d
}

// ScriptTimeoutDuration returns the parsed script timeout, or zero when no
// timeout is configured.
func (c *Config) ScriptTimeoutDuration() time.Duration {
	if c.ScriptTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.ScriptTimeout)
	if err != nil {
		return 0
	}
	return d
}
