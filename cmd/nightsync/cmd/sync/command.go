// Package sync implements the sync command.
package sync

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/internal/cmd/application"
)

// Flags holds the run flags shared by sync and plan.
type Flags struct {
	DryRun      bool
	Nuclear     bool
	Confirm     string
	Concurrency int
	Timeout     time.Duration
}

// AddFlags registers the run flags on cmd.
func AddFlags(cmd *cobra.Command, withDryRun bool) *Flags {
	flags := &Flags{}
	if withDryRun {
		cmd.Flags().BoolVarP(&flags.DryRun, "dry-run", "n", false, "plan and report without changing the goal")
	}
	cmd.Flags().BoolVar(&flags.Nuclear, "nuclear", false, "delete every datapoint in the goal and recreate it from the local record")
	cmd.Flags().StringVar(&flags.Confirm, "confirm", "", "goal slug confirming --nuclear (prompted when omitted)")
	cmd.Flags().IntVarP(&flags.Concurrency, "concurrency", "c", 0, "dates mutated in parallel (default from sync.concurrency)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "upper bound for the whole run (default from sync.timeout)")
	return flags
}

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	var flags *Flags

	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Converge the goal onto the local violation record",
		Args:    cobra.NoArgs,
		Long: `Sync loads the local violation record and every datapoint of the goal,
removes duplicate datapoints, and applies the creates, updates and deletes
that make the goal match the local record.

Exit status is 0 when every operation applied, 2 when some operations
failed, and 1 when the run could not start or was aborted before changing
anything.`,
		Example: `  nightsync sync                           # Converge the goal
  nightsync sync --dry-run                 # Show what would change
  nightsync sync -c 4 --timeout 5m         # Four dates in parallel
  nightsync sync --nuclear --confirm nightlogger`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	flags = AddFlags(cmd, true)
	return cmd
}
