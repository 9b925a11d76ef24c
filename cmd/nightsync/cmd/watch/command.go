// Package watch implements the watch command.
package watch

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/cmd/nightsync/cmd/sync"
	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// NewCommand creates the watch command.
func NewCommand(app application.Application) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Sync whenever the local artifact file changes",
		Args:    cobra.NoArgs,
		Long: `Watch syncs once, then again every time the violations.json file named by
source.uri is written or replaced. Bursts of changes within the debounce
window cause a single sync. Only file sources can be watched.

Failed runs are reported and watching continues. Interrupt to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := app.Source()
			if err != nil {
				return err
			}
			path, err := FilePath(src)
			if err != nil {
				return err
			}
			s, err := app.Syncer()
			if err != nil {
				return err
			}

			cfg := app.Config()
			opts, err := sync.Options(app, s.Goal(), &sync.Flags{
				Concurrency: cfg.Sync.Concurrency,
				Timeout:     cfg.Sync.Timeout,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			format := output.Format(app.OutputFormat())
			w := alerts.NewFormatWriter(cmd.ErrOrStderr(), format)
			report := func(result *pkgsync.Result, err error) {
				_ = w.WriteAlert(alerts.ForRun(result, err))
			}
			return New(s, path, debounce, app.Logger()).Run(cmd.Context(), report, opts...)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", constants.WatchDebounce, "quiet period before a change triggers a sync")
	return cmd
}

// FilePath returns the watched path of a file-backed artifact source.
func FilePath(src source.Source) (string, error) {
	if as, ok := src.(*source.ArtifactSource); ok {
		if ft, ok := as.Transport().(*source.FileTransport); ok {
			return ft.Path, nil
		}
	}
	return "", errors.NewConfigError("watch", "only file sources can be watched, got "+src.Name(), nil)
}
