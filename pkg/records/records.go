package records

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/nightsync/pkg/constants"
)

// Violation is one authoritative local record: the night of Date had an
// event worth Value.
type Violation struct {
	Date    Date    `json:"date" yaml:"date"`
	Value   float64 `json:"value" yaml:"value"`
	Comment string  `json:"comment" yaml:"comment"`
}

// Datapoint is the remote service's copy of a record. ID is empty until the
// remote has assigned one.
type Datapoint struct {
	ID        string  `json:"id" yaml:"id"`
	Date      Date    `json:"date" yaml:"date"`
	Value     float64 `json:"value" yaml:"value"`
	Comment   string  `json:"comment" yaml:"comment"`
	Timestamp int64   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	RequestID string  `json:"requestid,omitempty" yaml:"requestid,omitempty"`
	UpdatedAt int64   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// SameValue reports whether two values are equal within tolerance.
func SameValue(a, b float64) bool {
	return math.Abs(a-b) <= constants.ValueTolerance
}

// SameContent reports whether a remote datapoint already carries the
// record's value and comment.
func SameContent(v Violation, d Datapoint) bool {
	return SameValue(v.Value, d.Value) && v.Comment == d.Comment
}

// CompareIDs orders remote identifiers from oldest to newest. Decimal ids
// compare numerically; anything else compares by length, then bytes, which
// orders hex object ids by creation.
func CompareIDs(a, b string) int {
	if na, errA := strconv.ParseUint(a, 10, 64); errA == nil {
		if nb, errB := strconv.ParseUint(b, 10, 64); errB == nil {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	if len(a) != len(b) {
		return cmpInt(len(a), len(b))
	}
	return strings.Compare(a, b)
}

// SortViolations orders records by ascending date in place.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].Date.Before(vs[j].Date)
	})
}

// SortDatapoints orders datapoints by ascending date, then id.
func SortDatapoints(ds []Datapoint) {
	sort.SliceStable(ds, func(i, j int) bool {
		if c := ds[i].Date.Compare(ds[j].Date); c != 0 {
			return c < 0
		}
		return CompareIDs(ds[i].ID, ds[j].ID) < 0
	})
}

// Skip records why an input record was rejected during loading.
type Skip struct {
	Index  int    `json:"index" yaml:"index"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Dataset is a loaded, validated local dataset. Records hold at most one
// entry per date, sorted by date.
type Dataset struct {
	Source   string      `json:"source" yaml:"source"`
	Records  []Violation `json:"records" yaml:"records"`
	Skipped  []Skip      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	LoadedAt time.Time   `json:"loaded_at" yaml:"loaded_at"`
}

// Dates returns the set of dates present in the dataset.
func (d *Dataset) Dates() map[Date]struct{} {
	out := make(map[Date]struct{}, len(d.Records))
	for _, r := range d.Records {
		out[r.Date] = struct{}{}
	}
	return out
}

// Builder assembles a Dataset, enforcing one record per date.
type Builder struct {
	seen map[Date]struct{}
	ds   Dataset
}

// NewBuilder starts a dataset for the named source.
func NewBuilder(source string) *Builder {
	return &Builder{
		seen: make(map[Date]struct{}),
		ds:   Dataset{Source: source},
	}
}

// Add appends a record, or records a skip when its date was already added.
func (b *Builder) Add(index int, v Violation) bool {
	if _, dup := b.seen[v.Date]; dup {
		b.Skip(index, v.Date.String(), "duplicate date")
		return false
	}
	b.seen[v.Date] = struct{}{}
	b.ds.Records = append(b.ds.Records, v)
	return true
}

// Skip records a rejected input record.
func (b *Builder) Skip(index int, date, reason string) {
	b.ds.Skipped = append(b.ds.Skipped, Skip{Index: index, Date: date, Reason: reason})
}

// Build returns the sorted dataset.
func (b *Builder) Build(loadedAt time.Time) *Dataset {
	ds := b.ds
	ds.LoadedAt = loadedAt
	SortViolations(ds.Records)
	return &ds
}
