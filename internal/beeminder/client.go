// Package beeminder implements the remote datapoint client for a single
// Beeminder goal: exhaustive paginated listing plus create, update and
// idempotent delete.
package beeminder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/nightsync/internal/transport"
	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/records"
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	Username         string
	Goal             string
	AuthToken        string
	AuthScheme       string // "query" (default), "bearer" or "none"
	PageSize         int
	FetchConcurrency int
	MaxPages         int
	Location         *time.Location
	Retry            *transport.RetryPolicy
	HTTPClient       *http.Client
	Observer         transport.Observer
}

// Validate reports every missing required setting in one ConfigError.
func (c Config) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Goal == "" {
		missing = append(missing, "goal")
	}
	if c.AuthToken == "" && !strings.EqualFold(c.AuthScheme, "none") {
		missing = append(missing, "auth_token")
	}
	if len(missing) > 0 {
		return errors.NewConfigError("beeminder", "missing "+strings.Join(missing, ", "), nil)
	}
	if c.PageSize < 0 || c.PageSize > constants.MaxPageSize {
		return errors.NewConfigError("beeminder", fmt.Sprintf("page_size must be between 1 and %d", constants.MaxPageSize), nil)
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return errors.NewConfigError("beeminder", "invalid base_url", err)
		}
	}
	return nil
}

// Client talks to one goal's datapoints.
type Client struct {
	http        *transport.Client
	base        string
	username    string
	goal        string
	pageSize    int
	concurrency int
	maxPages    int
	loc         *time.Location
}

// New validates cfg and creates a Client. No network call is made.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []transport.Option{}
	if cfg.Retry != nil {
		opts = append(opts, transport.WithRetryPolicy(*cfg.Retry))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Observer != nil {
		opts = append(opts, transport.WithObserver(cfg.Observer))
	}

	c := &Client{
		http:        transport.New(transport.AuthForScheme(cfg.AuthScheme), cfg.AuthToken, opts...),
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		username:    cfg.Username,
		goal:        cfg.Goal,
		pageSize:    cfg.PageSize,
		concurrency: cfg.FetchConcurrency,
		maxPages:    cfg.MaxPages,
		loc:         cfg.Location,
	}
	if c.base == "" {
		c.base = constants.DefaultBaseURL
	}
	if c.pageSize == 0 {
		c.pageSize = constants.DefaultPageSize
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if c.concurrency > constants.MaxConcurrency {
		c.concurrency = constants.MaxConcurrency
	}
	if c.maxPages <= 0 {
		c.maxPages = constants.MaxPages
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c, nil
}

// Goal returns the goal slug this client targets.
func (c *Client) Goal() string {
	return c.goal
}

func (c *Client) datapointsURL() string {
	return fmt.Sprintf("%s/users/%s/goals/%s/datapoints.json",
		c.base, url.PathEscape(c.username), url.PathEscape(c.goal))
}

func (c *Client) datapointURL(id string) string {
	return fmt.Sprintf("%s/users/%s/goals/%s/datapoints/%s.json",
		c.base, url.PathEscape(c.username), url.PathEscape(c.goal), url.PathEscape(id))
}

type page struct {
	number int
	points []apiDatapoint
}

// ListAll returns every datapoint of the goal.
//
// Pages are requested until one comes back shorter than the page size; an
// empty page is an explicit end. With a fetch concurrency above one, pages
// are requested in waves. Any page failure fails the whole listing: a
// partial view is never returned. A datapoint seen on two pages (because
// the remote shifted between reads) is kept once.
func (c *Client) ListAll(ctx context.Context) ([]records.Datapoint, error) {
	logger := logging.FromContext(ctx)
	seen := make(map[string]bool)
	var out []records.Datapoint

	next := 1
	for {
		if next > c.maxPages {
			return nil, errors.NewRemoteFetchError(c.goal, next, fmt.Errorf("more than %d pages", c.maxPages))
		}
		wave := c.concurrency
		if next+wave-1 > c.maxPages {
			wave = c.maxPages - next + 1
		}

		pages, err := c.fetchWave(ctx, next, wave)
		if err != nil {
			return nil, err
		}

		done := false
		for _, p := range pages {
			added := 0
			for _, raw := range p.points {
				dp := raw.toRecord(c.loc)
				if dp.ID != "" {
					if seen[dp.ID] {
						continue
					}
					seen[dp.ID] = true
				}
				out = append(out, dp)
				added++
			}

			if len(p.points) < c.pageSize {
				done = true
				break
			}
			if added == 0 {
				return nil, errors.NewRemoteFetchError(c.goal, p.number, errors.New("pagination is not advancing"))
			}
		}

		logger.Debug().
			Int("from_page", next).
			Int("pages", wave).
			Int("datapoints", len(out)).
			Msg("Fetched datapoint pages")

		if done {
			break
		}
		next += wave
	}

	records.SortDatapoints(out)
	return out, nil
}

// fetchWave fetches count pages starting at first, concurrently, and
// returns them ordered by page number.
func (c *Client) fetchWave(ctx context.Context, first, count int) ([]page, error) {
	p := pool.NewWithResults[page]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(count)

	for n := first; n < first+count; n++ {
		number := n
		p.Go(func(ctx context.Context) (page, error) {
			points, err := c.fetchPage(ctx, number)
			if err != nil {
				return page{}, errors.NewRemoteFetchError(c.goal, number, err)
			}
			return page{number: number, points: points}, nil
		})
	}

	pages, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}

func (c *Client) fetchPage(ctx context.Context, number int) ([]apiDatapoint, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(number))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("sort", "id")

	resp, err := c.http.Do(ctx, http.MethodGet, c.datapointsURL()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var points []apiDatapoint
	if err := transport.DecodeResponse(resp, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// RequestID returns the idempotency key sent when creating the datapoint
// for date. The remote folds a repeated create with the same key into the
// existing datapoint, so retried creates never duplicate.
func RequestID(date records.Date) string {
	return constants.RequestIDPrefix + "-" + date.Daystamp()
}

func (c *Client) write(v records.Violation, withRequestID bool) apiWrite {
	w := apiWrite{
		Value:     v.Value,
		Timestamp: v.Date.Noon(c.loc).Unix(),
		Daystamp:  v.Date.Daystamp(),
		Comment:   v.Comment,
	}
	if withRequestID {
		w.RequestID = RequestID(v.Date)
	}
	return w
}

// Create adds a datapoint for v.
func (c *Client) Create(ctx context.Context, v records.Violation) (records.Datapoint, error) {
	resp, err := c.http.Do(ctx, http.MethodPost, c.datapointsURL(), c.write(v, true))
	if err != nil {
		return records.Datapoint{}, errors.NewRemoteWriteError("create", v.Date.String(), "", err)
	}
	var created apiDatapoint
	if err := transport.DecodeResponse(resp, &created); err != nil {
		return records.Datapoint{}, errors.NewRemoteWriteError("create", v.Date.String(), "", err)
	}
	logging.FromContext(ctx).Debug().
		Str("date", v.Date.String()).
		Str("id", string(created.ID)).
		Msg("Created datapoint")
	return created.toRecord(c.loc), nil
}

// Update rewrites datapoint id to carry v.
func (c *Client) Update(ctx context.Context, id string, v records.Violation) (records.Datapoint, error) {
	resp, err := c.http.Do(ctx, http.MethodPut, c.datapointURL(id), c.write(v, false))
	if err != nil {
		return records.Datapoint{}, errors.NewRemoteWriteError("update", v.Date.String(), id, err)
	}
	var updated apiDatapoint
	if err := transport.DecodeResponse(resp, &updated); err != nil {
		return records.Datapoint{}, errors.NewRemoteWriteError("update", v.Date.String(), id, err)
	}
	return updated.toRecord(c.loc), nil
}

// Delete removes datapoint id. A datapoint that is already gone counts as
// deleted.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.http.Do(ctx, http.MethodDelete, c.datapointURL(id), nil)
	if err != nil {
		if errors.IsNotFound(err) {
			logging.FromContext(ctx).Debug().Str("id", id).Msg("Datapoint already deleted")
			return nil
		}
		return errors.NewRemoteWriteError("delete", "", id, err)
	}
	return nil
}
