// Package config loads nightsync settings from config files, .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
)

// EnvPrefix prefixes every environment variable derived from a key, so
// beeminder.auth_token is read from NIGHTSYNC_BEEMINDER_AUTH_TOKEN.
const EnvPrefix = "NIGHTSYNC"

// legacyEnv maps keys to the variable names the night logger deployment
// already exports. They are consulted after the prefixed name.
var legacyEnv = map[string]string{
	"beeminder.username":   "BEEMINDER_USERNAME",
	"beeminder.auth_token": "BEEMINDER_AUTH_TOKEN",
	"beeminder.goal":       "BEEMINDER_GOAL_SLUG",
	"source.token":         "GITHUB_TOKEN",
	"source.s3_access_key": "AWS_ACCESS_KEY_ID",
	"source.s3_secret_key": "AWS_SECRET_ACCESS_KEY",
}

// Config is the complete nightsync configuration.
type Config struct {
	Beeminder Beeminder
	Source    Source
	Sync      Sync
	Ledger    Ledger
	Metrics   Metrics

	// File is the config file that was read, if any.
	File string
}

// Beeminder configures the remote goal.
type Beeminder struct {
	Username         string
	AuthToken        string
	Goal             string
	BaseURL          string
	AuthScheme       string
	PageSize         int
	FetchConcurrency int
}

// Source configures where the local dataset comes from.
type Source struct {
	URI         string
	Token       string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	AllowEmpty  bool
}

// Sync tunes a run.
type Sync struct {
	Concurrency     int
	Timeout         time.Duration
	Timezone        string
	MaxRetries      int
	DayBoundaryHour int
}

// Ledger locates the posted-date ledger database.
type Ledger struct {
	Path string
}

// Metrics configures the textfile export.
type Metrics struct {
	Textfile string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("beeminder.base_url", constants.DefaultBaseURL)
	v.SetDefault("beeminder.auth_scheme", "query")
	v.SetDefault("beeminder.page_size", constants.DefaultPageSize)
	v.SetDefault("beeminder.fetch_concurrency", 1)
	v.SetDefault("sync.concurrency", constants.DefaultConcurrency)
	v.SetDefault("sync.timeout", constants.SyncTimeout)
	v.SetDefault("sync.timezone", "Local")
	v.SetDefault("sync.max_retries", constants.MaxRetries)
	v.SetDefault("sync.day_boundary_hour", constants.DayBoundaryHour)
}

// NewViper returns a viper instance wired for nightsync: defaults, the
// NIGHTSYNC_ environment prefix and the legacy variable names.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

// Load reads configuration in order of precedence:
//  1. Environment variables
//  2. .env and .env.local files
//  3. The config file (file, or ~/.nightsync.yaml, or ./.nightsync.yaml)
//  4. Defaults
//
// A missing default config file is not an error; a missing explicit one is.
func Load(file string) (*Config, *viper.Viper, error) {
	loadEnvFiles()

	v := NewViper()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, nil, errors.NewConfigError("config", "cannot read config file", err)
		}
	}

	return FromViper(v), v, nil
}

// FromViper builds a Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Beeminder: Beeminder{
			Username:         v.GetString("beeminder.username"),
			AuthToken:        v.GetString("beeminder.auth_token"),
			Goal:             v.GetString("beeminder.goal"),
			BaseURL:          v.GetString("beeminder.base_url"),
			AuthScheme:       v.GetString("beeminder.auth_scheme"),
			PageSize:         v.GetInt("beeminder.page_size"),
			FetchConcurrency: v.GetInt("beeminder.fetch_concurrency"),
		},
		Source: Source{
			URI:         v.GetString("source.uri"),
			Token:       v.GetString("source.token"),
			S3AccessKey: v.GetString("source.s3_access_key"),
			S3SecretKey: v.GetString("source.s3_secret_key"),
			S3Region:    v.GetString("source.s3_region"),
			AllowEmpty:  v.GetBool("source.allow_empty"),
		},
		Sync: Sync{
			Concurrency:     v.GetInt("sync.concurrency"),
			Timeout:         v.GetDuration("sync.timeout"),
			Timezone:        v.GetString("sync.timezone"),
			MaxRetries:      v.GetInt("sync.max_retries"),
			DayBoundaryHour: v.GetInt("sync.day_boundary_hour"),
		},
		Ledger: Ledger{
			Path: v.GetString("ledger.path"),
		},
		Metrics: Metrics{
			Textfile: v.GetString("metrics.textfile"),
		},
		File: v.ConfigFileUsed(),
	}
}

// loadEnvFiles loads .env then .env.local. Variables already set in the
// environment are never overwritten.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Location resolves Sync.Timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Sync.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return nil, errors.NewConfigError("sync", "unknown timezone "+c.Sync.Timezone, err)
	}
	return loc, nil
}

// Validate checks everything a sync run needs and reports every problem in
// one ConfigError.
func (c *Config) Validate() error {
	var missing, invalid []string

	if c.Beeminder.Username == "" {
		missing = append(missing, "beeminder.username")
	}
	if c.Beeminder.Goal == "" {
		missing = append(missing, "beeminder.goal")
	}
	if c.Beeminder.AuthToken == "" && !strings.EqualFold(c.Beeminder.AuthScheme, "none") {
		missing = append(missing, "beeminder.auth_token")
	}
	if c.Source.URI == "" {
		missing = append(missing, "source.uri")
	}

	switch strings.ToLower(c.Beeminder.AuthScheme) {
	case "", "query", "bearer", "none":
	default:
		invalid = append(invalid, "beeminder.auth_scheme must be query, bearer or none")
	}
	if c.Beeminder.PageSize < 1 || c.Beeminder.PageSize > constants.MaxPageSize {
		invalid = append(invalid, fmt.Sprintf("beeminder.page_size must be between 1 and %d", constants.MaxPageSize))
	}
	if c.Beeminder.FetchConcurrency < 1 || c.Beeminder.FetchConcurrency > constants.MaxConcurrency {
		invalid = append(invalid, fmt.Sprintf("beeminder.fetch_concurrency must be between 1 and %d", constants.MaxConcurrency))
	}
	invalid = append(invalid, c.validateSync()...)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	parts = append(parts, invalid...)
	if len(parts) > 0 {
		return errors.NewConfigError("config", strings.Join(parts, "; "), nil)
	}
	return nil
}

// ValidateLedger checks the settings ledger commands need.
func (c *Config) ValidateLedger() error {
	var parts []string
	if c.Ledger.Path == "" {
		parts = append(parts, "missing ledger.path")
	}
	parts = append(parts, c.validateSync()...)
	if len(parts) > 0 {
		return errors.NewConfigError("config", strings.Join(parts, "; "), nil)
	}
	return nil
}

func (c *Config) validateSync() []string {
	var invalid []string
	if c.Sync.Concurrency < 1 || c.Sync.Concurrency > constants.MaxConcurrency {
		invalid = append(invalid, fmt.Sprintf("sync.concurrency must be between 1 and %d", constants.MaxConcurrency))
	}
	if c.Sync.Timeout < 0 {
		invalid = append(invalid, "sync.timeout must not be negative")
	}
	if c.Sync.MaxRetries < 0 {
		invalid = append(invalid, "sync.max_retries must not be negative")
	}
	if c.Sync.DayBoundaryHour < 0 || c.Sync.DayBoundaryHour > 23 {
		invalid = append(invalid, "sync.day_boundary_hour must be between 0 and 23")
	}
	if _, err := c.Location(); err != nil {
		invalid = append(invalid, "sync.timezone: unknown zone "+c.Sync.Timezone)
	}
	return invalid
}
