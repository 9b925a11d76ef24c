// Package extract implements the extract command, which publishes the
// night logger's database as a violations.json artifact.
package extract

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentstation/nightsync/internal/cmd/alerts"
	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/cmd/output"
	"github.com/agentstation/nightsync/internal/cmd/table"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
)

// Flags holds extract flags.
type Flags struct {
	Out  string
	List bool
}

// NewCommand creates the extract command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "extract",
		GroupID: "management",
		Short:   "Write violations.json from the night logger database",
		Args:    cobra.NoArgs,
		Long: `Extract reads the night logger database at ledger.path and writes the
violations.json artifact that "nightsync sync" loads from a file, git or s3
source. Every night with at least one night-time detection becomes one
violation; posted nights come from the ledger.

The output file is replaced atomically.`,
		Example: `  nightsync extract --out /var/lib/night-logger/violations.json
  nightsync extract --list`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&flags.List, "list", false, "list nights instead of writing the artifact")
	return cmd
}

// Execute extracts the artifact.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	cfg := app.Config()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := app.Store(true)
	if err != nil {
		return err
	}
	defer st.Close()

	nights, skipped, err := st.Nights(ctx, loc, cfg.Sync.DayBoundaryHour)
	if err != nil {
		return err
	}
	postings, err := st.Postings(ctx)
	if err != nil {
		return err
	}
	if skipped > 0 {
		app.Logger().Warn().Int("skipped", skipped).Msg("Samples with unreadable timestamps were ignored")
	}

	if flags.List {
		posted := make(map[string]bool, len(postings))
		for _, p := range postings {
			posted[p.Date.String()] = true
		}
		return output.Render(cmd.OutOrStdout(), output.Format(app.OutputFormat()), nights, func() output.Data {
			return table.NightsToTableData(nights, posted)
		})
	}

	doc := source.BuildArtifact(nights, postings, app.Now())
	if flags.Out == "-" || flags.Out == "" {
		return source.WriteArtifact(cmd.OutOrStdout(), doc)
	}
	if err := writeFile(flags.Out, func(w io.Writer) error { return source.WriteArtifact(w, doc) }); err != nil {
		return err
	}

	w := alerts.NewFormatWriter(cmd.ErrOrStderr(), output.Format(app.OutputFormat()))
	return w.WriteAlert(alerts.Newf(alerts.LevelSuccess, "Wrote %d violations (%d unposted) to %s",
		doc.TotalViolations, len(doc.UnpostedViolations), flags.Out))
}

// writeFile writes through a temporary file in the target directory and
// renames it into place.
func writeFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return errors.WrapIO("write", tmp.Name(), err)
	}
	if err := tmp.Chmod(constants.FilePermissions); err != nil {
		tmp.Close()
		return errors.WrapIO("chmod", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapIO("rename", path, err)
	}
	return nil
}
