package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/nightsync/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{Resource: "datapoint", ID: "abc"}
		assert.Equal(t, "datapoint with ID abc not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("datapoint", "test")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestRemoteRequestError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		target    error
		transient bool
	}{
		{"not found", 404, pkgerrors.ErrNotFound, false},
		{"rate limited", 429, pkgerrors.ErrRateLimited, true},
		{"server error", 503, pkgerrors.ErrRemoteUnavailable, true},
		{"bad request", 400, nil, false},
		{"unauthorized", 401, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewRemoteRequestError("GET", "/datapoints.json", tt.status, "body")
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
			assert.Equal(t, tt.transient, err.Transient())
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			} else {
				assert.False(t, errors.Is(err, pkgerrors.ErrRateLimited))
				assert.False(t, errors.Is(err, pkgerrors.ErrRemoteUnavailable))
			}
		})
	}

	t.Run("network error is transient", func(t *testing.T) {
		base := errors.New("connection reset")
		err := &pkgerrors.RemoteRequestError{Method: "POST", Endpoint: "/x", Err: base}
		assert.True(t, err.Transient())
		assert.Equal(t, base, err.Unwrap())
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestFatalClassification(t *testing.T) {
	local := pkgerrors.NewLocalDataUnavailableError("file:///x.json", "artifact missing", errors.New("no such file"))
	assert.True(t, pkgerrors.IsLocalDataUnavailable(local))
	assert.True(t, pkgerrors.IsFatal(local))
	assert.Contains(t, local.Error(), "artifact missing")

	fetch := pkgerrors.NewRemoteFetchError("nightlogger", 3, pkgerrors.NewRemoteRequestError("GET", "/d", 500, ""))
	assert.True(t, pkgerrors.IsRemoteFetch(fetch))
	assert.True(t, errors.Is(fetch, pkgerrors.ErrRemoteUnavailable))
	assert.Contains(t, fetch.Error(), "page 3")
	assert.True(t, pkgerrors.IsFatal(fetch))

	cfg := pkgerrors.NewConfigError("beeminder", "auth_token is required", nil)
	assert.True(t, pkgerrors.IsConfiguration(cfg))
	assert.True(t, pkgerrors.IsFatal(cfg))

	partial := &pkgerrors.PartialFailureError{Failed: 2}
	assert.True(t, pkgerrors.IsPartialFailure(partial))
	assert.False(t, pkgerrors.IsFatal(partial))
	assert.False(t, pkgerrors.IsFatal(nil))
}

func TestRemoteWriteError(t *testing.T) {
	base := pkgerrors.NewRemoteRequestError("DELETE", "/d/1.json", 400, "bad")
	err := pkgerrors.NewRemoteWriteError("delete", "2024-03-01", "1", base)
	assert.True(t, errors.Is(err, pkgerrors.ErrRemoteWrite))

	var reqErr *pkgerrors.RemoteRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 400, reqErr.StatusCode)
	assert.Contains(t, err.Error(), "2024-03-01")
}

func TestWrapHelpers(t *testing.T) {
	assert.Nil(t, pkgerrors.WrapIO("read", "x", nil))
	assert.Nil(t, pkgerrors.WrapParse("json", "x", nil))
	assert.Nil(t, pkgerrors.WrapLocal("x", "y", nil))

	err := pkgerrors.WrapIO("clone", "https://example.com/repo.git", errors.New("auth required"))
	ioErr, ok := err.(*pkgerrors.IOError)
	require.True(t, ok)
	assert.Equal(t, "clone", ioErr.Operation)

	err = pkgerrors.WrapParse("json", "violations.json", errors.New("unexpected EOF"))
	var parseErr *pkgerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "json", parseErr.Format)
	assert.Contains(t, err.Error(), "violations.json")
}

func TestValidationError(t *testing.T) {
	err := pkgerrors.NewValidationError("concurrency", 0, "must be at least 1")
	assert.Contains(t, err.Error(), "concurrency")
	assert.True(t, pkgerrors.IsValidationError(err))

	err = &pkgerrors.ValidationError{Message: "invalid configuration"}
	assert.Equal(t, "validation failed: invalid configuration", err.Error())
}
