package source

import (
	"context"
	"io"
	"os"

	"github.com/agentstation/nightsync/pkg/errors"
)

// FileTransport reads the artifact from the local filesystem.
type FileTransport struct {
	Path string
}

// Name implements Transport.
func (t *FileTransport) Name() string { return "file:" + t.Path }

// Open implements Transport.
func (t *FileTransport) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewLocalDataUnavailableError(t.Name(), "artifact not found", err)
		}
		return nil, errors.WrapIO("open", t.Path, err)
	}
	return f, nil
}
