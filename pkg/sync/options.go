// Package sync provides options, run states and results for a single
// reconciliation run.
package sync

import (
	"time"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
)

// Options controls one run of Syncer.Sync.
type Options struct {
	DryRun      bool          // Plan but do not apply
	Nuclear     bool          // Delete all remote datapoints and recreate from local
	ConfirmGoal string        // Must equal the goal slug when Nuclear is set
	Timeout     time.Duration // Upper bound for the whole run (0 means none)
	Concurrency int           // Dates mutated in parallel
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		DryRun:      false,
		Nuclear:     false,
		Timeout:     0,
		Concurrency: constants.DefaultConcurrency,
	}
}

// Apply applies the given options to the sync options.
func (s *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the options against the goal the run targets. A nuclear
// run must name the goal it will wipe.
func (s *Options) Validate(goal string) error {
	if s.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   s.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	if s.Concurrency < 1 || s.Concurrency > constants.MaxConcurrency {
		return &errors.ValidationError{
			Field:   "Concurrency",
			Value:   s.Concurrency,
			Message: "concurrency must be between 1 and 8",
		}
	}
	if s.Nuclear && s.ConfirmGoal != goal {
		return errors.NewConfigError("sync", "nuclear mode requires confirmation with the exact goal slug "+goal, nil)
	}
	return nil
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithNuclear enables full-reset mode. confirmGoal must match the goal
// slug of the syncer or the run is rejected before any I/O.
func WithNuclear(confirmGoal string) Option {
	return func(opts *Options) {
		opts.Nuclear = true
		opts.ConfirmGoal = confirmGoal
	}
}

// WithTimeout configures the sync timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithConcurrency configures how many dates are mutated in parallel.
func WithConcurrency(n int) Option {
	return func(opts *Options) {
		opts.Concurrency = n
	}
}
