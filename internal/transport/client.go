// Package transport is the HTTP layer for the remote tracking API. It
// applies authentication, retries transient failures (network errors,
// timeouts, 429 and 5xx) with capped exponential backoff, and maps every
// other non-2xx status to a RemoteRequestError without retrying.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Observer is called once per HTTP attempt. status is 0 when no response
// was received.
type Observer func(method string, status int, elapsed time.Duration)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client provides HTTP client functionality with authentication and retries.
type Client struct {
	http     *http.Client
	auth     Authenticator
	token    string
	retry    RetryPolicy
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithObserver registers a per-attempt observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a new transport client with the specified authenticator.
func New(auth Authenticator, token string, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:  &http.Client{Timeout: DefaultHTTPTimeout},
		auth:  auth,
		token: token,
		retry: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends a request, retrying transient failures. body, when non-nil, is
// encoded as JSON. A 2xx response is returned as is; anything else ends in
// a *errors.RemoteRequestError.
func (c *Client) Do(ctx context.Context, method, rawURL string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
	}

	logger := logging.FromContext(ctx)
	var lastErr *errors.RemoteRequestError
	for attempt := 0; ; attempt++ {
		resp, reqErr := c.once(ctx, method, rawURL, payload)
		if reqErr == nil {
			return resp, nil
		}
		lastErr = reqErr

		if ctx.Err() != nil || !reqErr.Transient() || attempt >= c.retry.MaxRetries {
			break
		}

		wait := c.retry.Backoff(attempt)
		if resp != nil {
			if d, ok := retryAfter(resp.Header, time.Now()); ok {
				wait = d
				if c.retry.Max > 0 && wait > c.retry.Max {
					wait = c.retry.Max
				}
			}
		}
		logger.Debug().
			Str("method", method).
			Str("endpoint", reqErr.Endpoint).
			Int("status", reqErr.StatusCode).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Retrying remote request")

		if err := sleepContext(ctx, wait); err != nil {
			lastErr.Err = errors.Join(lastErr.Err, err)
			break
		}
	}
	return nil, lastErr
}

// once performs a single attempt. On a non-2xx status it returns both the
// response (for headers) and the error.
func (c *Client) once(ctx context.Context, method, rawURL string, payload []byte) (*Response, *errors.RemoteRequestError) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &errors.RemoteRequestError{Method: method, Endpoint: rawURL, Err: err}
	}
	endpoint := req.URL.Path

	if c.token != "" {
		c.auth.Apply(req, c.token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, time.Since(start))
		return nil, &errors.RemoteRequestError{Method: method, Endpoint: endpoint, Err: redact(err, req.URL)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	c.observe(method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &errors.RemoteRequestError{Method: method, Endpoint: endpoint, Err: errors.WrapIO("read", "response body", err)}
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, errors.NewRemoteRequestError(method, endpoint, httpResp.StatusCode, truncate(string(data)))
	}
	return resp, nil
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, status, elapsed)
	}
}

// redact drops the query string, which may carry the auth token, from the
// URL that net/http embeds in transport errors.
func redact(err error, u *url.URL) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		clean := *u
		clean.RawQuery = ""
		clean.User = nil
		ue.URL = clean.String()
	}
	return err
}

func truncate(s string) string {
	if len(s) <= constants.MaxErrorBodyLength {
		return s
	}
	return s[:constants.MaxErrorBodyLength] + "..."
}
