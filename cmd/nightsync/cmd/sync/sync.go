package sync

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/internal/cmd/table"
	"github.com/agentstation/nightsync/pkg/errors"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Execute runs one sync and prints its result.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	s, err := app.Syncer()
	if err != nil {
		return err
	}

	opts, err := Options(app, s.Goal(), flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	result, err := s.Sync(cmd.Context(), opts...)
	format := output.Format(app.OutputFormat())
	if printErr := Print(cmd.OutOrStdout(), format, result); printErr != nil {
		app.Logger().Warn().Err(printErr).Msg("Failed to print result")
	}
	_ = alerts.NewFormatWriter(cmd.ErrOrStderr(), format).WriteAlert(alerts.ForRun(result, err))
	return err
}

// Options turns flags into run options. Zero flags fall back to the
// configuration. A nuclear run without --confirm reads the goal slug from
// the application's stdin.
func Options(app application.Application, goal string, flags *Flags, prompt io.Writer) ([]pkgsync.Option, error) {
	cfg := app.Config()

	concurrency := flags.Concurrency
	if concurrency == 0 {
		concurrency = cfg.Sync.Concurrency
	}
	timeout := flags.Timeout
	if timeout == 0 {
		timeout = cfg.Sync.Timeout
	}

	opts := []pkgsync.Option{
		pkgsync.WithDryRun(flags.DryRun),
		pkgsync.WithConcurrency(concurrency),
		pkgsync.WithTimeout(timeout),
	}
	if flags.Nuclear {
		confirm := flags.Confirm
		if confirm == "" {
			var err error
			if confirm, err = Confirm(app.Stdin(), prompt, goal); err != nil {
				return nil, err
			}
		}
		opts = append(opts, pkgsync.WithNuclear(confirm))
	}
	return opts, nil
}

// Confirm asks for the goal slug before a nuclear run and returns what was
// typed.
func Confirm(in io.Reader, out io.Writer, goal string) (string, error) {
	fmt.Fprintf(out, "WARNING: nuclear mode deletes every datapoint in %q and recreates it from the local record.\n", goal)
	fmt.Fprintf(out, "Type the goal slug to continue: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Print writes the run result. Table formats show a summary followed by any
// failed operations; json and yaml encode the whole result.
func Print(w io.Writer, format output.Format, result *pkgsync.Result) error {
	if result == nil {
		return nil
	}
	if !format.IsTable() {
		return output.NewFormatter(format).Format(w, result)
	}

	f := output.NewFormatter(format)
	if err := f.Format(w, table.ResultToTableData(result)); err != nil {
		return err
	}
	if result.Report != nil && len(result.Report.Failures) > 0 {
		fmt.Fprintln(w)
		return f.Format(w, table.FailuresToTableData(result.Report.Failures))
	}
	return nil
}
