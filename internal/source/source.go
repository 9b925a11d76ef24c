// Package source loads the authoritative local violation dataset.
//
// A dataset comes either from the violations.json artifact published by the
// night logger, fetched through a Transport (local file, git branch or S3
// object), or straight from the logger's SQLite database. Every failure to
// obtain a usable dataset is a LocalDataUnavailableError: a sync must never
// run against an assumed-empty local side.
package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

// Source produces the local dataset.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Load returns the validated dataset.
	Load(ctx context.Context) (*records.Dataset, error)
}

// Transport fetches the raw artifact bytes.
type Transport interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Options tunes how a source URI is opened.
type Options struct {
	// Token authenticates git transports.
	Token string
	// S3 credentials and region.
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	// AllowEmpty accepts an artifact with an empty violations list. Without
	// it, or when records were present but all invalid, an empty dataset is
	// a LocalDataUnavailableError.
	AllowEmpty bool
	// Location and BoundaryHour decide which local day a SQLite sample
	// belongs to.
	Location     *time.Location
	BoundaryHour int
	// Clock stamps Dataset.LoadedAt.
	Clock func() time.Time
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o Options) boundaryHour() int {
	if o.BoundaryHour > 0 {
		return o.BoundaryHour
	}
	return constants.DayBoundaryHour
}

// Open resolves a source URI:
//
//	/path/violations.json, file:///path/violations.json
//	git+https://github.com/owner/repo.git?ref=night-logger-data&path=violations.json
//	s3://bucket/violations.json?endpoint=minio.local:9000&insecure=1
//	sqlite:///var/lib/night-logger/night_logs.db
func Open(uri string, opts Options) (Source, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.NewConfigError("source", "source uri is required", nil)
	}
	if !strings.Contains(uri, "://") {
		return NewArtifactSource(&FileTransport{Path: uri}, opts), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.NewConfigError("source", "invalid source uri", err)
	}

	switch u.Scheme {
	case "file":
		return NewArtifactSource(&FileTransport{Path: u.Host + u.Path}, opts), nil
	case "git+https", "git+http":
		t, err := newGitTransport(u, opts)
		if err != nil {
			return nil, err
		}
		return NewArtifactSource(t, opts), nil
	case "s3":
		t, err := newS3Transport(u, opts)
		if err != nil {
			return nil, err
		}
		return NewArtifactSource(t, opts), nil
	case "sqlite":
		return NewSQLiteSource(u.Host+u.Path, opts), nil
	default:
		return nil, errors.NewConfigError("source", "unsupported source scheme "+u.Scheme, nil)
	}
}

// Static is a fixed in-memory dataset.
type Static struct {
	name    string
	records []records.Violation
	opts    Options
}

// NewStatic returns a source serving vs.
func NewStatic(name string, vs []records.Violation, opts Options) *Static {
	return &Static{name: name, records: vs, opts: opts}
}

// Name implements Source.
func (s *Static) Name() string { return s.name }

// Load implements Source.
func (s *Static) Load(ctx context.Context) (*records.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapLocal(s.name, "load canceled", err)
	}
	b := records.NewBuilder(s.name)
	for i, v := range s.records {
		if v.Date.IsZero() {
			b.Skip(i, "", "missing date")
			continue
		}
		b.Add(i, v)
	}
	return finish(b, s.name, s.opts)
}

// finish builds the dataset and rejects an empty one unless allowed.
// AllowEmpty never covers a dataset whose records were all skipped.
func finish(b *records.Builder, name string, opts Options) (*records.Dataset, error) {
	ds := b.Build(opts.now())
	if len(ds.Records) == 0 && (len(ds.Skipped) > 0 || !opts.AllowEmpty) {
		msg := "no valid records"
		if n := len(ds.Skipped); n > 0 {
			msg = fmt.Sprintf("no valid records (%d skipped)", n)
		}
		return nil, errors.NewLocalDataUnavailableError(name, msg, nil)
	}
	return ds, nil
}
