// Package planner computes the minimal set of remote mutations that makes
// the remote dataset match the local one.
package planner

import (
	"fmt"
	"strings"

	"github.com/agentstation/nightsync/pkg/records"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeCreate adds a datapoint for a local date missing remotely.
	ChangeTypeCreate ChangeType = "create"
	// ChangeTypeUpdate rewrites a datapoint whose value or comment drifted.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeDelete removes a duplicate, orphaned or undated datapoint.
	ChangeTypeDelete ChangeType = "delete"
)

// Mode selects how a plan was built.
type Mode string

const (
	// ModeSelective converges with the fewest operations.
	ModeSelective Mode = "selective"
	// ModeNuclear deletes every remote datapoint and recreates from local.
	ModeNuclear Mode = "nuclear"
)

// DeleteReason explains why a datapoint is scheduled for deletion.
type DeleteReason string

const (
	// ReasonDuplicate marks a non-surviving datapoint of a duplicated date.
	ReasonDuplicate DeleteReason = "duplicate"
	// ReasonOrphan marks a datapoint whose date has no local record.
	ReasonOrphan DeleteReason = "orphan"
	// ReasonUndated marks a datapoint whose date could not be read.
	ReasonUndated DeleteReason = "undated"
	// ReasonReset marks deletions performed by a nuclear reset.
	ReasonReset DeleteReason = "reset"
)

// Create schedules a new remote datapoint.
type Create struct {
	Record records.Violation `json:"record" yaml:"record"`
}

// Update schedules an in-place rewrite of an existing datapoint.
type Update struct {
	ID   string            `json:"id" yaml:"id"`
	Want records.Violation `json:"want" yaml:"want"`
	Have records.Datapoint `json:"have" yaml:"have"`
}

// Delete schedules removal of a remote datapoint.
type Delete struct {
	ID     string            `json:"id" yaml:"id"`
	Date   records.Date      `json:"date" yaml:"date"`
	Reason DeleteReason      `json:"reason" yaml:"reason"`
	Point  records.Datapoint `json:"point" yaml:"point"`
}

// Plan is the ordered set of remote mutations for one run. It is never
// persisted.
type Plan struct {
	Mode    Mode     `json:"mode" yaml:"mode"`
	Creates []Create `json:"creates" yaml:"creates"`
	Updates []Update `json:"updates" yaml:"updates"`
	Deletes []Delete `json:"deletes" yaml:"deletes"`
}

// Counts summarizes a plan.
type Counts struct {
	Creates int `json:"creates" yaml:"creates"`
	Updates int `json:"updates" yaml:"updates"`
	Deletes int `json:"deletes" yaml:"deletes"`
}

// Total returns the number of operations.
func (c Counts) Total() int {
	return c.Creates + c.Updates + c.Deletes
}

// Counts returns the number of operations per kind.
func (p *Plan) Counts() Counts {
	if p == nil {
		return Counts{}
	}
	return Counts{Creates: len(p.Creates), Updates: len(p.Updates), Deletes: len(p.Deletes)}
}

// Len returns the total number of operations.
func (p *Plan) Len() int {
	return p.Counts().Total()
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// Describe renders the plan one operation per line, in execution order.
func (p *Plan) Describe() string {
	if p.Empty() {
		return "no changes"
	}
	var b strings.Builder
	for _, d := range p.Deletes {
		fmt.Fprintf(&b, "- %s %s (%s)\n", d.Date, d.ID, d.Reason)
	}
	for _, c := range p.Creates {
		fmt.Fprintf(&b, "+ %s value=%g %q\n", c.Record.Date, c.Record.Value, c.Record.Comment)
	}
	for _, u := range p.Updates {
		fmt.Fprintf(&b, "~ %s %s value=%g->%g %q->%q\n",
			u.Want.Date, u.ID, u.Have.Value, u.Want.Value, u.Have.Comment, u.Want.Comment)
	}
	return b.String()
}
