package app

import (
	"os"

	"github.com/agentstation/nightsync/internal/config"
)

// Config holds the loaded nightsync configuration plus the global flags.
type Config struct {
	*config.Config

	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// ConfigFile is the --config flag value.
	ConfigFile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. Environment variables
//  3. .env files
//  4. Config file (file, or ~/.nightsync.yaml)
//  5. Defaults
func LoadConfig(file string) (*Config, error) {
	cfg, _, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	return &Config{
		Config:     cfg,
		ConfigFile: file,
		LogLevel:   os.Getenv("LOG_LEVEL"),
		LogFormat:  getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:  getEnvOrDefault("LOG_OUTPUT", "stderr"),
		NoColor:    os.Getenv("NO_COLOR") != "",
	}, nil
}

// Reload rereads the nightsync settings from file, keeping the flags.
func (c *Config) Reload(file string) error {
	cfg, _, err := config.Load(file)
	if err != nil {
		return err
	}
	c.Config = cfg
	c.ConfigFile = file
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
