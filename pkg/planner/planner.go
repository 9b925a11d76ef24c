package planner

import (
	"sort"

	"github.com/agentstation/nightsync/pkg/dedupe"
	"github.com/agentstation/nightsync/pkg/records"
)

// Diff builds a selective plan from the local records and the resolved
// remote state.
//
// Creates and updates come out in ascending date order. Deletes cover every
// duplicate loser, every undated datapoint, and every canonical datapoint
// whose date has no local record, ordered by date then id. Dates present on
// both sides with equal content produce no operation.
func Diff(local []records.Violation, res dedupe.Resolution) *Plan {
	plan := &Plan{
		Mode:    ModeSelective,
		Creates: []Create{},
		Updates: []Update{},
		Deletes: []Delete{},
	}

	localKeys := make(map[records.Date]records.Violation, len(local))
	for _, v := range local {
		localKeys[v.Date] = v
	}

	for _, v := range sortedLocal(local) {
		remote, ok := res.Canonical[v.Date]
		switch {
		case !ok:
			plan.Creates = append(plan.Creates, Create{Record: v})
		case !records.SameContent(v, remote):
			plan.Updates = append(plan.Updates, Update{ID: remote.ID, Want: v, Have: remote})
		}
	}

	for _, p := range res.Losers {
		plan.Deletes = append(plan.Deletes, Delete{ID: p.ID, Date: p.Date, Reason: ReasonDuplicate, Point: p})
	}
	for _, p := range res.Undated {
		plan.Deletes = append(plan.Deletes, Delete{ID: p.ID, Date: p.Date, Reason: ReasonUndated, Point: p})
	}
	for _, p := range res.CanonicalPoints() {
		if _, ok := localKeys[p.Date]; !ok {
			plan.Deletes = append(plan.Deletes, Delete{ID: p.ID, Date: p.Date, Reason: ReasonOrphan, Point: p})
		}
	}
	sortDeletes(plan.Deletes)

	return plan
}

// Nuclear builds a reset plan: delete every remote datapoint, duplicates
// included, then create every local record.
func Nuclear(local []records.Violation, remote []records.Datapoint) *Plan {
	plan := &Plan{
		Mode:    ModeNuclear,
		Creates: make([]Create, 0, len(local)),
		Updates: []Update{},
		Deletes: make([]Delete, 0, len(remote)),
	}
	for _, p := range remote {
		plan.Deletes = append(plan.Deletes, Delete{ID: p.ID, Date: p.Date, Reason: ReasonReset, Point: p})
	}
	sortDeletes(plan.Deletes)
	for _, v := range sortedLocal(local) {
		plan.Creates = append(plan.Creates, Create{Record: v})
	}
	return plan
}

func sortedLocal(local []records.Violation) []records.Violation {
	out := append([]records.Violation(nil), local...)
	records.SortViolations(out)
	return out
}

func sortDeletes(ds []Delete) {
	sort.SliceStable(ds, func(i, j int) bool {
		if c := ds[i].Date.Compare(ds[j].Date); c != 0 {
			return c < 0
		}
		return records.CompareIDs(ds[i].ID, ds[j].ID) < 0
	})
}
