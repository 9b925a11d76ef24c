package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentstation/nightsync/pkg/planner"
	"github.com/agentstation/nightsync/pkg/records"
)

// Failure describes one operation that did not apply.
type Failure struct {
	Kind    planner.ChangeType `json:"kind" yaml:"kind"`
	Date    records.Date       `json:"date" yaml:"date"`
	ID      string             `json:"id,omitempty" yaml:"id,omitempty"`
	Message string             `json:"error" yaml:"error"`
	Err     error              `json:"-" yaml:"-"`
}

// Error returns the failure cause as text.
func (f Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Err.Error()
}

// Report summarizes plan execution.
type Report struct {
	Created    int           `json:"created" yaml:"created"`
	Updated    int           `json:"updated" yaml:"updated"`
	Deleted    int           `json:"deleted" yaml:"deleted"`
	Failed     int           `json:"failed" yaml:"failed"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Failures   []Failure     `json:"failures" yaml:"failures"`
	Incomplete bool          `json:"incomplete" yaml:"incomplete"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Applied returns the number of operations that succeeded.
func (r *Report) Applied() int {
	return r.Created + r.Updated + r.Deleted
}

// OK reports whether every planned operation applied.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Skipped == 0 && !r.Incomplete
}

// FailedDates returns the distinct dates with failed operations, ascending.
// Re-running a sync retries exactly these.
func (r *Report) FailedDates() []records.Date {
	seen := make(map[records.Date]bool)
	var out []records.Date
	for _, f := range r.Failures {
		if !seen[f.Date] {
			seen[f.Date] = true
			out = append(out, f.Date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d created, %d updated, %d deleted", r.Created, r.Updated, r.Deleted)
	var extra []string
	if r.Failed > 0 {
		extra = append(extra, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Skipped > 0 {
		extra = append(extra, fmt.Sprintf("%d skipped", r.Skipped))
	}
	if r.Incomplete {
		extra = append(extra, "incomplete")
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, ", ") + ")"
	}
	return s
}
