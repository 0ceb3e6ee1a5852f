package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StorageConfig holds configuration for token persistence
type StorageConfig struct {
	// Type selects the token store backend: "file" or "memory"
	Type string `json:"type" mapstructure:"type"`
	// TokenFile overrides the token file location (file backend only)
	TokenFile string `json:"token_file,omitempty" mapstructure:"token_file"`
}

// Config represents the transitwatch client configuration
type Config struct {
	// APIBaseURL is the base URL of the auth/transit API service
	APIBaseURL string `json:"api_base_url" mapstructure:"api_base_url"`
	// RequestTimeoutSeconds bounds every network call
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	// StateDir holds the token and cookie files that survive restarts
	StateDir string `json:"state_dir" mapstructure:"state_dir"`
	// LogDir holds session event logs
	LogDir string `json:"log_dir" mapstructure:"log_dir"`
	// Storage selects the token store backend
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	// ArrivalsSchedule is the cron expression driving the arrivals poller
	ArrivalsSchedule string `json:"arrivals_schedule" mapstructure:"arrivals_schedule"`
}

// LoadConfig loads configuration from a JSON file. An empty filename falls
// back to environment variables.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return LoadFromEnv()
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close config file: %v", err)
		}
	}()

	var config Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

// LoadFromEnv builds a configuration from environment variables.
// TRANSITWATCH_API_BASE_URL is required; everything else has defaults.
func LoadFromEnv() (*Config, error) {
	baseURL := os.Getenv("TRANSITWATCH_API_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("TRANSITWATCH_API_BASE_URL environment variable is not set")
	}

	config := &Config{APIBaseURL: baseURL}

	if v := os.Getenv("TRANSITWATCH_STATE_DIR"); v != "" {
		config.StateDir = v
	}
	if v := os.Getenv("TRANSITWATCH_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRANSITWATCH_TIMEOUT_SECONDS %q: %w", v, err)
		}
		config.RequestTimeoutSeconds = seconds
	}

	config.applyDefaults()
	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.StateDir == "" {
		c.StateDir = defaultStateDir()
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.StateDir, "logs")
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.ArrivalsSchedule == "" {
		c.ArrivalsSchedule = "@every 1m"
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".transitwatch"
	}
	return filepath.Join(home, ".transitwatch")
}

// RequestTimeout returns the request timeout as a duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TokenPath returns the access token file location
func (c *Config) TokenPath() string {
	if c.Storage.TokenFile != "" {
		return c.Storage.TokenFile
	}
	return filepath.Join(c.StateDir, "token.json")
}

// CookiePath returns the persisted cookie jar location
func (c *Config) CookiePath() string {
	return filepath.Join(c.StateDir, "cookies.json")
}
