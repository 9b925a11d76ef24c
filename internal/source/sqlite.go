package source

import (
	"context"

	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/records"
)

// SQLiteSource derives the dataset directly from the night logger's
// database, opened read-only: one record per night with at least one
// night-time detection.
type SQLiteSource struct {
	path string
	opts Options
}

// NewSQLiteSource returns a source reading the database at path.
func NewSQLiteSource(path string, opts Options) *SQLiteSource {
	return &SQLiteSource{path: path, opts: opts}
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "sqlite:" + s.path }

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context) (*records.Dataset, error) {
	db, err := store.OpenReadOnly(s.path)
	if err != nil {
		return nil, errors.NewLocalDataUnavailableError(s.Name(), "cannot open database", err)
	}
	defer db.Close()

	nights, skipped, err := db.Nights(ctx, s.opts.location(), s.opts.boundaryHour())
	if err != nil {
		return nil, errors.NewLocalDataUnavailableError(s.Name(), "cannot read detections", err)
	}
	if skipped > 0 {
		logging.FromContext(ctx).Warn().
			Int("rows", skipped).
			Msg("Skipped samples with unreadable timestamps")
	}

	b := records.NewBuilder(s.Name())
	for i, n := range nights {
		b.Add(i, n.Violation())
	}
	return finish(b, s.Name(), s.opts)
}
