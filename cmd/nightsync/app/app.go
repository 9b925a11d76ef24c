// Package app provides the application context and dependency management
// for the nightsync CLI. It centralizes configuration, logging, metrics and
// the construction of syncers and stores for commands.
package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/nightsync"
	"github.com/agentstation/nightsync/internal/beeminder"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/config"
	"github.com/agentstation/nightsync/internal/metrics"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/internal/transport"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// App represents the nightsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config  *Config
	logger  *zerolog.Logger
	metrics *metrics.Metrics

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	clock  func() time.Time
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: metrics.New(),
		stdin:   os.Stdin,
		clock:   time.Now,
	}

	cfg, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	app.config = cfg

	logger := NewLogger(cfg)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.config.Config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Metrics returns the process metrics.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// OutputFormat returns the --format value.
func (a *App) OutputFormat() string { return a.config.Format }

// Now returns the application clock.
func (a *App) Now() time.Time { return a.clock() }

// Stdin returns the reader used for confirmations.
func (a *App) Stdin() io.Reader { return a.stdin }

// Source opens the configured local source.
func (a *App) Source() (source.Source, error) {
	cfg := a.config.Config
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return source.Open(cfg.Source.URI, source.Options{
		Token:        cfg.Source.Token,
		S3AccessKey:  cfg.Source.S3AccessKey,
		S3SecretKey:  cfg.Source.S3SecretKey,
		S3Region:     cfg.Source.S3Region,
		AllowEmpty:   cfg.Source.AllowEmpty,
		Location:     loc,
		BoundaryHour: cfg.Sync.DayBoundaryHour,
		Clock:        a.clock,
	})
}

// Remote creates the Beeminder client for the configured goal.
func (a *App) Remote() (*beeminder.Client, error) {
	cfg := a.config.Config
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	retry := transport.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Sync.MaxRetries
	return beeminder.New(beeminder.Config{
		BaseURL:          cfg.Beeminder.BaseURL,
		Username:         cfg.Beeminder.Username,
		Goal:             cfg.Beeminder.Goal,
		AuthToken:        cfg.Beeminder.AuthToken,
		AuthScheme:       cfg.Beeminder.AuthScheme,
		PageSize:         cfg.Beeminder.PageSize,
		FetchConcurrency: cfg.Beeminder.FetchConcurrency,
		Location:         loc,
		Retry:            &retry,
		Observer:         a.metrics.ObserveRequest,
	})
}

// Syncer validates the configuration and builds a syncer. When a metrics
// textfile is configured it is rewritten after every run.
func (a *App) Syncer() (nightsync.Syncer, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	remote, err := a.Remote()
	if err != nil {
		return nil, err
	}

	s, err := nightsync.New(
		nightsync.WithSource(src),
		nightsync.WithRemote(remote),
		nightsync.WithLogger(a.logger),
		nightsync.WithMetrics(a.metrics),
		nightsync.WithClock(a.clock),
	)
	if err != nil {
		return nil, err
	}

	if path := a.config.Metrics.Textfile; path != "" {
		s.OnRunComplete(func(*pkgsync.Result, error) {
			if err := a.metrics.WriteTextfile(path); err != nil {
				a.logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
			}
		})
	}
	return s, nil
}

// Store opens the sampler database at ledger.path.
func (a *App) Store(readOnly bool) (*store.Store, error) {
	if err := a.config.ValidateLedger(); err != nil {
		return nil, err
	}
	if readOnly {
		return store.OpenReadOnly(a.config.Ledger.Path)
	}
	return store.Open(a.config.Ledger.Path)
}

// Shutdown flushes metrics before the process exits.
func (a *App) Shutdown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.metrics.WriteTextfile(a.config.Metrics.Textfile)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStdin sets the reader used for confirmations.
func WithStdin(r io.Reader) Option {
	return func(a *App) error {
		a.stdin = r
		return nil
	}
}

// WithOutput redirects command output and alerts.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) error {
		a.stdout = stdout
		a.stderr = stderr
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) error {
		a.clock = now
		return nil
	}
}
