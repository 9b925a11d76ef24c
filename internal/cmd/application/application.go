// Package application defines what commands need from the running CLI.
//
// Commands accept an Application rather than the concrete app so they can
// be tested with Mock.
package application

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/nightsync"
	"github.com/agentstation/nightsync/internal/config"
	"github.com/agentstation/nightsync/internal/metrics"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/internal/store"
)

// Application provides the dependencies commands use.
type Application interface {
	// Config returns the loaded configuration.
	Config() *config.Config

	// Syncer builds a syncer from the configuration. The configuration is
	// validated first.
	Syncer() (nightsync.Syncer, error)

	// Source opens the configured local source.
	Source() (source.Source, error)

	// Store opens the sampler database at ledger.path.
	Store(readOnly bool) (*store.Store, error)

	// Metrics returns the process metrics, or nil when disabled.
	Metrics() *metrics.Metrics

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Now returns the current time.
	Now() time.Time

	// Stdin is where interactive confirmations are read from.
	Stdin() io.Reader

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
