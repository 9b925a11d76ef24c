// Package trigger implements the once-per-night trigger command.
package trigger

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/cmd/nightsync/cmd/sync"
	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

// Flags holds trigger flags.
type Flags struct {
	At    string
	Force bool
}

// NewCommand creates the trigger command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "trigger",
		GroupID: "core",
		Short:   "Sync once for the current night",
		Args:    cobra.NoArgs,
		Long: `Trigger is called by the night logger when it records a violation. It
works out which night the moment belongs to (times before
sync.day_boundary_hour count toward the previous day), and syncs only if
that night is not yet in the posted-date ledger. The night is recorded in
the ledger before the sync starts, so repeated triggers in the same night
do nothing. Scheduled "nightsync sync" runs still converge the goal if a
triggered sync fails.`,
		Example: `  nightsync trigger
  nightsync trigger --at 2025-08-16T01:30:00+02:00
  nightsync trigger --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.At, "at", "", "moment of the violation (RFC 3339, default now)")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "sync even if the night is already posted")
	return cmd
}

// Night returns the night a moment belongs to in the configured zone.
func Night(app application.Application, at time.Time) (records.Date, error) {
	loc, err := app.Config().Location()
	if err != nil {
		return records.Date{}, err
	}
	return records.NightOf(at.In(loc), app.Config().Sync.DayBoundaryHour), nil
}

// Execute runs the gate and, when open, a sync.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	format := output.Format(app.OutputFormat())
	w := alerts.NewFormatWriter(cmd.ErrOrStderr(), format)

	at := app.Now()
	if flags.At != "" {
		t, err := time.Parse(time.RFC3339, flags.At)
		if err != nil {
			return errors.NewValidationError("at", flags.At, "must be an RFC 3339 time")
		}
		at = t
	}
	night, err := Night(app, at)
	if err != nil {
		return err
	}

	// Validate everything before touching the ledger.
	s, err := app.Syncer()
	if err != nil {
		return err
	}
	st, err := app.Store(false)
	if err != nil {
		return err
	}
	defer st.Close()

	posted, err := st.Posted(ctx, night)
	if err != nil {
		return err
	}
	if posted && !flags.Force {
		app.Logger().Info().Stringer("night", night).Msg("Night already posted")
		return w.WriteAlert(alerts.Newf(alerts.LevelInfo, "Night %s already posted, nothing to do", night))
	}
	if _, err := st.Mark(ctx, night, app.Now()); err != nil {
		return err
	}
	app.Logger().Info().Stringer("night", night).Bool("forced", posted).Msg("Night marked as posted")

	cfg := app.Config()
	opts, err := sync.Options(app, s.Goal(), &sync.Flags{
		Concurrency: cfg.Sync.Concurrency,
		Timeout:     cfg.Sync.Timeout,
	}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	result, err := s.Sync(ctx, opts...)
	if printErr := sync.Print(cmd.OutOrStdout(), format, result); printErr != nil {
		app.Logger().Warn().Err(printErr).Msg("Failed to print result")
	}
	_ = w.WriteAlert(alerts.ForRun(result, err))
	return err
}
