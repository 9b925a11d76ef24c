package source

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agentstation/nightsync/pkg/errors"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// S3Transport reads the artifact from an S3-compatible object store.
type S3Transport struct {
	Endpoint  string
	Bucket    string
	Key       string
	Region    string
	Insecure  bool
	AccessKey string
	SecretKey string
}

func newS3Transport(u *url.URL, opts Options) (*S3Transport, error) {
	q := u.Query()
	t := &S3Transport{
		Endpoint:  q.Get("endpoint"),
		Bucket:    u.Host,
		Key:       strings.TrimPrefix(u.Path, "/"),
		Region:    q.Get("region"),
		Insecure:  q.Get("insecure") == "1" || q.Get("insecure") == "true",
		AccessKey: opts.S3AccessKey,
		SecretKey: opts.S3SecretKey,
	}
	if t.Endpoint == "" {
		t.Endpoint = defaultS3Endpoint
	}
	if t.Region == "" {
		t.Region = opts.S3Region
	}
	if t.Bucket == "" || t.Key == "" {
		return nil, errors.NewConfigError("source", "s3 source needs s3://bucket/key", nil)
	}
	return t, nil
}

// Name implements Transport.
func (t *S3Transport) Name() string {
	return "s3://" + t.Bucket + "/" + t.Key
}

// Open implements Transport. The object is read fully before returning.
func (t *S3Transport) Open(ctx context.Context) (io.ReadCloser, error) {
	client, err := minio.New(t.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(t.AccessKey, t.SecretKey, ""),
		Secure: !t.Insecure,
		Region: t.Region,
	})
	if err != nil {
		return nil, errors.NewConfigError("source", "invalid s3 endpoint", err)
	}

	obj, err := client.GetObject(ctx, t.Bucket, t.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, t.translate(err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, t.translate(err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (t *S3Transport) translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.NewLocalDataUnavailableError(t.Name(), "artifact not found", err)
	default:
		return errors.NewLocalDataUnavailableError(t.Name(), "object read failed", err)
	}
}
