// Package ledger implements the posted-date ledger commands.
package ledger

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/internal/cmd/table"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

// NewCommand creates the ledger command and its subcommands.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ledger",
		GroupID: "management",
		Short:   "Inspect and maintain the posted-date ledger",
		Long: `The posted-date ledger records the nights whose upload has been
triggered. It lives in the night logger's database at ledger.path and only
ever grows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newMarkCommand(app))
	cmd.AddCommand(newCheckCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List posted nights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := app.Store(true)
			if err != nil {
				return err
			}
			defer st.Close()

			postings, err := st.Postings(cmd.Context())
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), output.Format(app.OutputFormat()), postings, func() output.Data {
				return table.PostingsToTableData(postings)
			})
		},
	}
}

func newMarkCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "mark DATE|tonight",
		Short: "Record a night as posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(app, args[0])
			if err != nil {
				return err
			}
			st, err := app.Store(false)
			if err != nil {
				return err
			}
			defer st.Close()

			added, err := st.Mark(cmd.Context(), date, app.Now())
			if err != nil {
				return err
			}
			w := alerts.NewFormatWriter(cmd.ErrOrStderr(), output.Format(app.OutputFormat()))
			if !added {
				return w.WriteAlert(alerts.Newf(alerts.LevelInfo, "%s was already posted", date))
			}
			return w.WriteAlert(alerts.Newf(alerts.LevelSuccess, "%s marked as posted", date))
		},
	}
}

func newCheckCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "check DATE|tonight",
		Short: "Exit 0 if a night is posted, 1 otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(app, args[0])
			if err != nil {
				return err
			}
			st, err := app.Store(true)
			if err != nil {
				return err
			}
			defer st.Close()

			posted, err := st.Posted(cmd.Context(), date)
			if err != nil {
				return err
			}
			if !posted {
				return errors.NewNotFoundError("posting", date.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), date.String()+" posted")
			return nil
		},
	}
}

// parseDate accepts YYYY-MM-DD, or "tonight" for the night the current
// moment belongs to.
func parseDate(app application.Application, s string) (records.Date, error) {
	if s == "tonight" {
		loc, err := app.Config().Location()
		if err != nil {
			return records.Date{}, err
		}
		return records.NightOf(app.Now().In(loc), app.Config().Sync.DayBoundaryHour), nil
	}
	d, err := records.ParseDate(s)
	if err != nil {
		return records.Date{}, errors.NewValidationError("date", s, "must be YYYY-MM-DD")
	}
	return d, nil
}
