// Package nightsync reconciles the night logger's local violation record
// with its mirrored copy in a Beeminder goal.
//
// The local dataset is the single source of truth. Each run loads it,
// fetches every remote datapoint, collapses remote duplicates, and applies
// the minimal set of creates, updates and deletes that makes the goal match.
// A run that cannot read either side fails before touching the remote.
package nightsync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/nightsync/internal/metrics"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/records"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Syncer runs reconciliations. It keeps no state between runs.
type Syncer interface {
	// Sync runs one reconciliation.
	Sync(ctx context.Context, opts ...pkgsync.Option) (*pkgsync.Result, error)

	// Goal returns the goal slug the syncer writes to.
	Goal() string

	// OnRunComplete registers a callback invoked after every run.
	OnRunComplete(RunCompleteHook)

	// OnOperationFailed registers a callback invoked for every failed operation.
	OnOperationFailed(OperationFailedHook)
}

// Remote is the remote goal: an exhaustive listing plus single mutations.
type Remote interface {
	executor.Writer
	ListAll(ctx context.Context) ([]records.Datapoint, error)
	Goal() string
}

// Option configures a Syncer.
type Option func(*config) error

type config struct {
	source  source.Source
	remote  Remote
	goal    string
	logger  *zerolog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// WithSource sets where the local dataset is loaded from.
func WithSource(src source.Source) Option {
	return func(c *config) error {
		c.source = src
		return nil
	}
}

// WithRemote sets the remote goal client.
func WithRemote(r Remote) Option {
	return func(c *config) error {
		c.remote = r
		return nil
	}
}

// WithGoal overrides the goal slug used to confirm nuclear runs. It
// defaults to the remote's goal.
func WithGoal(goal string) Option {
	return func(c *config) error {
		c.goal = goal
		return nil
	}
}

// WithLogger sets the logger used when the run context carries none.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		c.clock = now
		return nil
	}
}

type syncer struct {
	cfg   config
	hooks *hooks
}

// New creates a Syncer. A source and a remote are required.
func New(opts ...Option) (Syncer, error) {
	cfg := config{clock: time.Now}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.source == nil {
		return nil, errors.NewConfigError("nightsync", "a local source is required", nil)
	}
	if cfg.remote == nil {
		return nil, errors.NewConfigError("nightsync", "a remote is required", nil)
	}
	if cfg.goal == "" {
		cfg.goal = cfg.remote.Goal()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}

	return &syncer{cfg: cfg, hooks: newHooks()}, nil
}

// Goal implements Syncer.
func (s *syncer) Goal() string {
	return s.cfg.goal
}

// OnRunComplete implements Syncer.
func (s *syncer) OnRunComplete(fn RunCompleteHook) {
	s.hooks.OnRunComplete(fn)
}

// OnOperationFailed implements Syncer.
func (s *syncer) OnOperationFailed(fn OperationFailedHook) {
	s.hooks.OnOperationFailed(fn)
}
