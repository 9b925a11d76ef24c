package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/planner"
)

// Result represents the complete result of a sync run.
type Result struct {
	RunID string `json:"run_id" yaml:"run_id"`
	Goal  string `json:"goal" yaml:"goal"`

	// Inputs
	LocalRecords   int `json:"local_records" yaml:"local_records"`
	LocalSkipped   int `json:"local_skipped" yaml:"local_skipped"`
	RemotePoints   int `json:"remote_points" yaml:"remote_points"`
	DuplicateDates int `json:"duplicate_dates" yaml:"duplicate_dates"`

	Plan   *planner.Plan    `json:"plan,omitempty" yaml:"plan,omitempty"`
	Report *executor.Report `json:"report,omitempty" yaml:"report,omitempty"`

	// Operation metadata
	DryRun      bool          `json:"dry_run" yaml:"dry_run"`
	Nuclear     bool          `json:"nuclear" yaml:"nuclear"`
	State       State         `json:"state" yaml:"state"`
	Transitions []State       `json:"transitions" yaml:"transitions"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// HasChanges returns true if the plan contained any operation.
func (r *Result) HasChanges() bool {
	return r.Plan != nil && !r.Plan.Empty()
}

// Err returns a PartialFailureError when the run completed with failed or
// skipped operations, and nil otherwise.
func (r *Result) Err() error {
	if r.Report == nil || r.Report.OK() {
		return nil
	}
	return &errors.PartialFailureError{
		Failed:     r.Report.Failed,
		Skipped:    r.Report.Skipped,
		Incomplete: r.Report.Incomplete,
	}
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var parts []string
	if r.DryRun {
		parts = append(parts, "(Dry run)")
	}
	if r.Nuclear {
		parts = append(parts, "(Nuclear reset)")
	}

	var summary string
	switch {
	case !r.HasChanges():
		summary = "No changes detected"
	case r.Report == nil:
		c := r.Plan.Counts()
		summary = fmt.Sprintf("%d to create, %d to update, %d to delete", c.Creates, c.Updates, c.Deletes)
	default:
		summary = r.Report.Summary()
	}

	if len(parts) > 0 {
		summary += " " + strings.Join(parts, " ")
	}
	return summary
}
