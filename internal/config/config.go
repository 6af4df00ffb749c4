package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quaff-io/quaff/internal/digest"
	"github.com/quaff-io/quaff/internal/progress"
)

// Config defines configuration for the quaff CLI.
type Config struct {
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	Path         string        `yaml:"path"`
	Workers      int           `yaml:"workers"`
	Hash         string        `yaml:"hash"`
	Save         string        `yaml:"save"`   // optional bucket URL for the verified stream
	Object       string        `yaml:"object"` // object key inside the bucket
	MaxRequest   int64         `yaml:"max_request"`
	StallRetries int           `yaml:"stall_retries"`
	GapPasses    int           `yaml:"gap_passes"`
	Progress     bool          `yaml:"progress"`
	Timeout      time.Duration `yaml:"timeout"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig defines transport retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Path:         "/",
		Workers:      1,
		Hash:         digest.Default,
		StallRetries: 10,
		GapPasses:    8,
		Timeout:      30 * time.Second,
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string byte sizes and
// durations.
type yamlConfig struct {
	Address      string          `yaml:"address"`
	Port         int             `yaml:"port"`
	Path         string          `yaml:"path"`
	Workers      int             `yaml:"workers"`
	Hash         string          `yaml:"hash"`
	Save         string          `yaml:"save"`
	Object       string          `yaml:"object"`
	MaxRequest   string          `yaml:"max_request"`
	StallRetries int             `yaml:"stall_retries"`
	GapPasses    int             `yaml:"gap_passes"`
	Progress     bool            `yaml:"progress"`
	Timeout      string          `yaml:"timeout"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Address != "" {
		cfg.Address = yc.Address
	}
	if yc.Port != 0 {
		cfg.Port = yc.Port
	}
	if yc.Path != "" {
		cfg.Path = yc.Path
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Hash != "" {
		cfg.Hash = yc.Hash
	}
	if yc.Save != "" {
		cfg.Save = yc.Save
	}
	if yc.Object != "" {
		cfg.Object = yc.Object
	}
	if yc.MaxRequest != "" {
		size, err := progress.ParseBytes(yc.MaxRequest)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_request: %w", err)
		}
		cfg.MaxRequest = size
	}
	if yc.StallRetries != 0 {
		cfg.StallRetries = yc.StallRetries
	}
	if yc.GapPasses != 0 {
		cfg.GapPasses = yc.GapPasses
	}
	cfg.Progress = yc.Progress
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the QUAFF_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("QUAFF_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("QUAFF_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_PORT: %w", err)
		}
		c.Port = n
	}
	if v := os.Getenv("QUAFF_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("QUAFF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("QUAFF_HASH"); v != "" {
		c.Hash = v
	}
	if v := os.Getenv("QUAFF_SAVE"); v != "" {
		c.Save = v
	}
	if v := os.Getenv("QUAFF_OBJECT"); v != "" {
		c.Object = v
	}
	if v := os.Getenv("QUAFF_MAX_REQUEST"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_MAX_REQUEST: %w", err)
		}
		c.MaxRequest = size
	}
	if v := os.Getenv("QUAFF_STALL_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_STALL_RETRIES: %w", err)
		}
		c.StallRetries = n
	}
	if v := os.Getenv("QUAFF_GAP_PASSES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_GAP_PASSES: %w", err)
		}
		c.GapPasses = n
	}
	if v := os.Getenv("QUAFF_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("QUAFF_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("QUAFF_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("QUAFF_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("QUAFF_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse QUAFF_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("config: address is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("config: port must be between 1 and 65535")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if _, err := digest.New(c.Hash); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.StallRetries <= 0 {
		return errors.New("config: stall_retries must be positive")
	}
	if c.GapPasses <= 0 {
		return errors.New("config: gap_passes must be positive")
	}
	if c.MaxRequest < 0 {
		return errors.New("config: max_request must not be negative")
	}
	if c.Save == "" && c.Object != "" {
		return errors.New("config: object requires save")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Address != "" {
		c.Address = override.Address
	}
	if override.Port != 0 {
		c.Port = override.Port
	}
	if override.Path != "" {
		c.Path = override.Path
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Hash != "" {
		c.Hash = override.Hash
	}
	if override.Save != "" {
		c.Save = override.Save
	}
	if override.Object != "" {
		c.Object = override.Object
	}
	if override.MaxRequest != 0 {
		c.MaxRequest = override.MaxRequest
	}
	if override.StallRetries != 0 {
		c.StallRetries = override.StallRetries
	}
	if override.GapPasses != 0 {
		c.GapPasses = override.GapPasses
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}

// URL builds the request URL for the configured origin.
func (c *Config) URL() string {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("http://%s:%d%s", c.Address, c.Port, path)
}
