// Package plan implements the plan command.
package plan

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/cmd/nightsync/cmd/sync"
	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/internal/cmd/table"
)

// NewCommand creates the plan command.
func NewCommand(app application.Application) *cobra.Command {
	var flags *sync.Flags

	cmd := &cobra.Command{
		Use:     "plan",
		GroupID: "core",
		Short:   "Show the operations a sync would apply",
		Args:    cobra.NoArgs,
		Long: `Plan performs a sync in dry-run mode and prints every planned operation
in execution order: deletes, then creates, then updates. The goal is not
changed. Use -o wide to see delete reasons and the current remote values of
updated datapoints.`,
		Example: `  nightsync plan
  nightsync plan -o wide
  nightsync plan -o json | jq '.deletes[].id'
  nightsync plan --nuclear --confirm nightlogger`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.DryRun = true
			return Execute(cmd, app, flags)
		},
	}

	flags = sync.AddFlags(cmd, false)
	return cmd
}

// Execute computes and prints the plan.
func Execute(cmd *cobra.Command, app application.Application, flags *sync.Flags) error {
	s, err := app.Syncer()
	if err != nil {
		return err
	}
	opts, err := sync.Options(app, s.Goal(), flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	result, err := s.Sync(cmd.Context(), opts...)
	format := output.Format(app.OutputFormat())
	if result != nil && result.Plan != nil {
		toTable := func() output.Data {
			return table.PlanToTableData(result.Plan, format == output.FormatWide)
		}
		if result.Plan.Empty() && format.IsTable() {
			toTable = nil
		}
		if toTable != nil || !format.IsTable() {
			if printErr := output.Render(cmd.OutOrStdout(), format, result.Plan, toTable); printErr != nil {
				return printErr
			}
		}
	}
	_ = alerts.NewFormatWriter(cmd.ErrOrStderr(), format).WriteAlert(alerts.ForRun(result, err))
	return err
}
