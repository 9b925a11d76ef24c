// Package constants provides shared constants used throughout nightsync:
// remote API defaults, retry policy, limits, and file permissions.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout is the per-request timeout for remote API calls
	DefaultHTTPTimeout = 30 * time.Second

	// SyncTimeout is the default upper bound for one sync run
	SyncTimeout = 15 * time.Minute

	// CloneTimeout bounds fetching the artifact repository
	CloneTimeout = 2 * time.Minute

	// WatchDebounce is the quiet period before a watched artifact change triggers a sync
	WatchDebounce = 2 * time.Second
)

// Retry policy for transient remote failures (timeouts, 429, 5xx)
const (
	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second

	// MaxRetries is the number of retries after the first attempt
	MaxRetries = 3
)

// Limits
const (
	// DefaultPageSize is the number of datapoints requested per page
	DefaultPageSize = 300

	// MaxPageSize is the largest page size the remote accepts
	MaxPageSize = 300

	// MaxPages bounds pagination so a misbehaving remote cannot loop forever
	MaxPages = 1000

	// DefaultConcurrency is the default number of dates mutated in parallel
	DefaultConcurrency = 1

	// MaxConcurrency caps parallel mutations and page fetches
	MaxConcurrency = 8

	// MaxErrorBodyLength truncates remote error bodies kept in errors
	MaxErrorBodyLength = 512
)

// Remote defaults
const (
	// DefaultBaseURL is the Beeminder API root
	DefaultBaseURL = "https://www.beeminder.com/api/v1"

	// DefaultAuthParam is the query parameter carrying the personal auth token
	DefaultAuthParam = "auth_token"

	// RequestIDPrefix prefixes idempotency keys sent with creates
	RequestIDPrefix = "nightsync"

	// ValueTolerance is the absolute difference under which values are equal
	ValueTolerance = 1e-9
)

// Night window: samples before DayBoundaryHour count toward the previous day
const (
	// DayBoundaryHour is the local hour at which a new "night day" starts
	DayBoundaryHour = 4

	// NoonHour is the local hour used for datapoint timestamps
	NoonHour = 12
)

// File permission constants
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Format constants
const (
	// DateFormat is the civil date layout used for sync keys
	DateFormat = "2006-01-02"

	// DaystampFormat is the compact date layout the remote uses
	DaystampFormat = "20060102"
)

// Path and file name defaults
const (
	// DefaultArtifactName is the artifact file name inside a repository or bucket
	DefaultArtifactName = "violations.json"

	// DefaultArtifactBranch is the branch the sampler publishes to
	DefaultArtifactBranch = "night-logger-data"

	// DefaultConfigName is the config file name (without extension) searched in $HOME
	DefaultConfigName = ".nightsync"
)
