// Package dedupe collapses remote datapoints to at most one canonical
// datapoint per date.
//
// The remote service accepts any number of datapoints for a single day, so
// manual edits, retried creates, or earlier buggy runs leave duplicates
// behind. Resolve picks one survivor per date and reports every other
// datapoint as a loser to be deleted. It performs no I/O and its output
// depends only on its input set, never on input order.
package dedupe

import (
	"github.com/agentstation/nightsync/pkg/records"
)

// Resolution is the outcome of duplicate resolution.
type Resolution struct {
	// Canonical maps each date to its surviving datapoint.
	Canonical map[records.Date]records.Datapoint

	// Losers are the non-surviving datapoints, sorted by date then id.
	Losers []records.Datapoint

	// Undated are datapoints whose date could not be determined. They can
	// never match a local record.
	Undated []records.Datapoint

	// Groups is the number of dates that had more than one datapoint.
	Groups int
}

// Dates returns the canonical dates in ascending order.
func (r Resolution) Dates() []records.Date {
	points := r.CanonicalPoints()
	out := make([]records.Date, len(points))
	for i, p := range points {
		out[i] = p.Date
	}
	return out
}

// CanonicalPoints returns the survivors sorted by date.
func (r Resolution) CanonicalPoints() []records.Datapoint {
	out := make([]records.Datapoint, 0, len(r.Canonical))
	for _, p := range r.Canonical {
		out = append(out, p)
	}
	records.SortDatapoints(out)
	return out
}

// Resolve groups datapoints by date and keeps one survivor per group.
//
// The survivor is the datapoint with the highest id, treated as the most
// recently created. Ties on id (only possible with malformed input) fall
// back to the larger value, then the lexicographically smaller comment.
func Resolve(points []records.Datapoint) Resolution {
	res := Resolution{Canonical: make(map[records.Date]records.Datapoint)}
	counts := make(map[records.Date]int)

	for _, p := range points {
		if p.Date.IsZero() {
			res.Undated = append(res.Undated, p)
			continue
		}
		counts[p.Date]++
		current, ok := res.Canonical[p.Date]
		if !ok {
			res.Canonical[p.Date] = p
			continue
		}
		if Better(p, current) {
			res.Losers = append(res.Losers, current)
			res.Canonical[p.Date] = p
		} else {
			res.Losers = append(res.Losers, p)
		}
	}

	for _, n := range counts {
		if n > 1 {
			res.Groups++
		}
	}
	records.SortDatapoints(res.Losers)
	records.SortDatapoints(res.Undated)
	return res
}

// Better reports whether a should survive over b for the same date.
func Better(a, b records.Datapoint) bool {
	if c := records.CompareIDs(a.ID, b.ID); c != 0 {
		return c > 0
	}
	if !records.SameValue(a.Value, b.Value) {
		return a.Value > b.Value
	}
	return a.Comment < b.Comment
}
