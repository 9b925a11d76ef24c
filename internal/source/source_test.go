package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

const artifactJSON = `{
  "violations": [
    {"date": "2025-08-15", "timestamp": "2025-08-16T03:10:00Z", "value": 1, "comment": "Night logger violation (4 detections)", "daystamp": "20250815"},
    {"date": "2025-08-14", "value": "1", "comment": "late"},
    {"daystamp": "20250813", "value": 2.5, "comment": ""},
    {"date": "2025-02-30", "value": 1, "comment": "bad date"},
    {"date": "2025-08-12", "value": "abc", "comment": "bad value"},
    {"date": "2025-08-11", "comment": "no value"},
    {"date": "2025-08-10", "value": "NaN", "comment": "not a number"},
    {"date": "2025-08-09", "value": "+Inf", "comment": "infinite"},
    {"value": 1, "comment": "no date"},
    {"date": "2025-08-15", "value": 1, "comment": "repeat"}
  ],
  "posted_dates": ["2025-08-14"],
  "last_updated": "2025-08-16T03:11:00Z",
  "total_violations": 10,
  "unposted_violations": []
}`

func fixedClock() time.Time {
	return time.Date(2025, 8, 16, 12, 0, 0, 0, time.UTC)
}

func TestParseArtifact(t *testing.T) {
	ds, err := ParseArtifact(strings.NewReader(artifactJSON), "test", Options{Clock: fixedClock})
	require.NoError(t, err)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, "2025-08-13", ds.Records[0].Date.String(), "records are sorted by date")
	assert.Equal(t, 2.5, ds.Records[0].Value)
	assert.Equal(t, 1.0, ds.Records[1].Value, "numeric strings are accepted")
	assert.Equal(t, "Night logger violation (4 detections)", ds.Records[2].Comment)
	assert.Equal(t, fixedClock(), ds.LoadedAt)

	reasons := map[string]int{}
	for _, s := range ds.Skipped {
		reasons[s.Reason]++
	}
	assert.Equal(t, map[string]int{
		"malformed date":    1,
		"non-numeric value": 4,
		"missing date":      1,
		"duplicate date":    1,
	}, reasons)
}

func TestParseArtifactFatal(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"violations": [`},
		{"no records", `{"violations": []}`},
		{"only malformed records", `{"violations": [{"date": "yesterday", "value": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifact(strings.NewReader(tt.doc), "test", Options{})
			require.Error(t, err)
			assert.True(t, errors.IsLocalDataUnavailable(err))
		})
	}
}

func TestParseArtifactAllowEmpty(t *testing.T) {
	ds, err := ParseArtifact(strings.NewReader(`{"violations": []}`), "test", Options{AllowEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, ds.Records)

	tests := []struct {
		name string
		doc  string
	}{
		{"only malformed records", `{"violations": [{"date": "bad", "value": 1}]}`},
		{"only non-finite values", `{"violations": [{"date": "2025-08-15", "value": "NaN"}]}`},
		{"missing violations key", `{}`},
		{"null violations", `{"violations": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifact(strings.NewReader(tt.doc), "test", Options{AllowEmpty: true})
			require.Error(t, err)
			assert.True(t, errors.IsLocalDataUnavailable(err))
		})
	}
}

func TestBuildArtifactRoundTrip(t *testing.T) {
	nights := []store.Night{
		{Date: records.MustParseDate("2025-08-14"), Detections: 2, First: time.Date(2025, 8, 14, 23, 0, 0, 0, time.UTC)},
		{Date: records.MustParseDate("2025-08-15"), Detections: 5, First: time.Date(2025, 8, 15, 23, 30, 0, 0, time.UTC)},
	}
	postings := []store.Posting{{Date: records.MustParseDate("2025-08-14")}}

	doc := BuildArtifact(nights, postings, fixedClock())
	assert.Equal(t, 2, doc.TotalViolations)
	assert.Equal(t, "2025-08-15", doc.Violations[0].Date, "newest first")
	assert.Equal(t, "20250815", doc.Violations[0].Daystamp)
	assert.Equal(t, []string{"2025-08-14"}, doc.PostedDates)
	require.Len(t, doc.UnpostedViolations, 1)
	assert.Equal(t, "2025-08-15", doc.UnpostedViolations[0].Date)

	var buf strings.Builder
	require.NoError(t, WriteArtifact(&buf, doc))
	ds, err := ParseArtifact(strings.NewReader(buf.String()), "roundtrip", Options{})
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, nights[0].Violation(), ds.Records[0])
	assert.Equal(t, nights[1].Violation(), ds.Records[1])
}

func TestOpenDispatch(t *testing.T) {
	src, err := Open("/tmp/violations.json", Options{})
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/violations.json", src.Name())

	src, err = Open("file:///tmp/violations.json", Options{})
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/violations.json", src.Name())

	src, err = Open("git+https://github.com/owner/repo.git?ref=data&path=/out/violations.json", Options{Token: "t"})
	require.NoError(t, err)
	gt := src.(*ArtifactSource).Transport().(*GitTransport)
	assert.Equal(t, "https://github.com/owner/repo.git", gt.URL)
	assert.Equal(t, "data", gt.Ref)
	assert.Equal(t, "out/violations.json", gt.Path)
	assert.Equal(t, "t", gt.Token)

	src, err = Open("git+https://github.com/owner/repo.git", Options{})
	require.NoError(t, err)
	gt = src.(*ArtifactSource).Transport().(*GitTransport)
	assert.Equal(t, "night-logger-data", gt.Ref)
	assert.Equal(t, "violations.json", gt.Path)

	src, err = Open("s3://bucket/dir/violations.json?endpoint=minio.local:9000&insecure=1", Options{S3AccessKey: "ak"})
	require.NoError(t, err)
	st := src.(*ArtifactSource).Transport().(*S3Transport)
	assert.Equal(t, "minio.local:9000", st.Endpoint)
	assert.Equal(t, "bucket", st.Bucket)
	assert.Equal(t, "dir/violations.json", st.Key)
	assert.True(t, st.Insecure)
	assert.Equal(t, "ak", st.AccessKey)

	src, err = Open("sqlite:///var/lib/night-logger/night_logs.db", Options{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:/var/lib/night-logger/night_logs.db", src.Name())

	for _, bad := range []string{"", "ftp://host/file", "s3://bucket", "git+https:///repo.git"} {
		_, err := Open(bad, Options{})
		require.Error(t, err, bad)
		assert.True(t, errors.IsConfiguration(err), bad)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "violations.json")
	ctx := context.Background()

	src, err := Open(path, Options{})
	require.NoError(t, err)
	_, err = src.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err), "a missing artifact is fatal")

	require.NoError(t, os.WriteFile(path, []byte(artifactJSON), 0o600))
	ds, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)
	assert.Equal(t, "file:"+path, ds.Source)
}

func memRepo(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, body := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs
}

func TestGitTransport(t *testing.T) {
	ctx := context.Background()
	gt := &GitTransport{URL: "https://example.com/repo.git", Ref: "data", Path: "violations.json"}

	gt.clone = func(context.Context) (billy.Filesystem, error) {
		return memRepo(t, map[string]string{"violations.json": artifactJSON}), nil
	}
	ds, err := NewArtifactSource(gt, Options{}).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)

	gt.clone = func(context.Context) (billy.Filesystem, error) {
		return memRepo(t, map[string]string{"README.md": "hi"}), nil
	}
	_, err = NewArtifactSource(gt, Options{}).Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err))
	assert.Contains(t, err.Error(), "not found in branch")

	gt.clone = func(context.Context) (billy.Filesystem, error) {
		return nil, fmt.Errorf("remote: %w", transport.ErrRepositoryNotFound)
	}
	_, err = NewArtifactSource(gt, Options{}).Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err))
	assert.Contains(t, err.Error(), "branch not found")
}

// fakeS3 serves a single object in path-style addressing.
func fakeS3(t *testing.T, bucket, key, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+key {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
				`<Key>%s</Key><BucketName>%s</BucketName><Resource>%s</Resource><RequestId>1</RequestId></Error>`,
				key, bucket, r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Date(2025, 8, 16, 3, 11, 0, 0, time.UTC).Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Transport(t *testing.T) {
	srv := fakeS3(t, "night", "violations.json", artifactJSON)
	endpoint := strings.TrimPrefix(srv.URL, "http://")
	ctx := context.Background()
	opts := Options{S3AccessKey: "ak", S3SecretKey: "sk", S3Region: "us-east-1"}

	src, err := Open("s3://night/violations.json?insecure=1&endpoint="+endpoint, opts)
	require.NoError(t, err)
	ds, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)

	src, err = Open("s3://night/missing.json?insecure=1&endpoint="+endpoint, opts)
	require.NoError(t, err)
	_, err = src.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err))
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night_logs.db")
	ctx := context.Background()
	src := NewSQLiteSource(path, Options{Location: time.UTC})

	_, err := src.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err), "a missing database is fatal")

	db, err := store.Open(path)
	require.NoError(t, err)
	_, err = src.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err), "a database without detections is fatal")

	require.NoError(t, db.RecordSample(ctx, time.Date(2025, 8, 15, 23, 5, 0, 0, time.UTC), true))
	require.NoError(t, db.RecordSample(ctx, time.Date(2025, 8, 16, 2, 5, 0, 0, time.UTC), true))
	require.NoError(t, db.RecordSample(ctx, time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC), false))
	require.NoError(t, db.Close())

	ds, err := src.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "2025-08-15", ds.Records[0].Date.String())
	assert.Equal(t, "Night logger violation (2 detections)", ds.Records[0].Comment)
}

func TestStaticSource(t *testing.T) {
	ctx := context.Background()
	vs := []records.Violation{
		{Date: records.MustParseDate("2025-08-15"), Value: 1},
		{Date: records.MustParseDate("2025-08-15"), Value: 2},
		{Value: 1},
	}
	ds, err := NewStatic("static", vs, Options{}).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)
	assert.Len(t, ds.Skipped, 2)

	_, err = NewStatic("empty", nil, Options{}).Load(ctx)
	assert.True(t, errors.IsLocalDataUnavailable(err))

	ds, err = NewStatic("empty", nil, Options{AllowEmpty: true}).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Records)

	_, err = NewStatic("undated", []records.Violation{{Value: 1}}, Options{AllowEmpty: true}).Load(ctx)
	assert.True(t, errors.IsLocalDataUnavailable(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewStatic("static", vs, Options{}).Load(canceled)
	assert.True(t, errors.IsLocalDataUnavailable(err))
}
