package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
)

// GitTransport reads the artifact from a branch of a git repository. The
// branch is shallow-cloned into memory on every Open; nothing touches disk.
type GitTransport struct {
	URL   string
	Ref   string
	Path  string
	Token string

	// clone fetches the branch worktree. Tests replace it.
	clone func(ctx context.Context) (billy.Filesystem, error)
}

func newGitTransport(u *url.URL, opts Options) (*GitTransport, error) {
	q := u.Query()
	t := &GitTransport{
		Ref:   q.Get("ref"),
		Path:  strings.TrimPrefix(q.Get("path"), "/"),
		Token: opts.Token,
	}
	if t.Ref == "" {
		t.Ref = constants.DefaultArtifactBranch
	}
	if t.Path == "" {
		t.Path = constants.DefaultArtifactName
	}
	if u.Host == "" {
		return nil, errors.NewConfigError("source", "git source needs a host", nil)
	}

	remote := *u
	remote.Scheme = strings.TrimPrefix(u.Scheme, "git+")
	remote.RawQuery = ""
	remote.Fragment = ""
	t.URL = remote.String()
	return t, nil
}

// Name implements Transport.
func (t *GitTransport) Name() string {
	return "git:" + t.URL + "@" + t.Ref + ":" + t.Path
}

// Open implements Transport.
func (t *GitTransport) Open(ctx context.Context) (io.ReadCloser, error) {
	clone := t.clone
	if clone == nil {
		clone = t.cloneMemory
	}

	ctx, cancel := context.WithTimeout(ctx, constants.CloneTimeout)
	defer cancel()

	fs, err := clone(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) || errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, errors.NewLocalDataUnavailableError(t.Name(), "artifact branch not found", err)
		}
		return nil, errors.NewLocalDataUnavailableError(t.Name(), "clone failed", err)
	}

	f, err := fs.Open(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewLocalDataUnavailableError(t.Name(), "artifact not found in branch", err)
		}
		return nil, errors.WrapIO("open", t.Path, err)
	}
	return f, nil
}

func (t *GitTransport) cloneMemory(ctx context.Context) (billy.Filesystem, error) {
	worktree := memfs.New()
	opts := &git.CloneOptions{
		URL:           t.URL,
		ReferenceName: plumbing.NewBranchReferenceName(t.Ref),
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	}
	if t.Token != "" {
		opts.Auth = &http.BasicAuth{Username: "token", Password: t.Token}
	}
	if _, err := git.CloneContext(ctx, memory.NewStorage(), worktree, opts); err != nil {
		return nil, err
	}
	return worktree, nil
}
