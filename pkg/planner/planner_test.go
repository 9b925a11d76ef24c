package planner

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/pkg/dedupe"
	"github.com/agentstation/nightsync/pkg/records"
)

func v(date string, value float64, comment string) records.Violation {
	return records.Violation{Date: records.MustParseDate(date), Value: value, Comment: comment}
}

func dp(id, date string, value float64, comment string) records.Datapoint {
	return records.Datapoint{ID: id, Date: records.MustParseDate(date), Value: value, Comment: comment}
}

func plan(local []records.Violation, remote []records.Datapoint) *Plan {
	return Diff(local, dedupe.Resolve(remote))
}

func TestDiffCreatesMissingDate(t *testing.T) {
	p := plan([]records.Violation{v("2025-08-15", 1, "late")}, nil)

	require.Len(t, p.Creates, 1)
	assert.Equal(t, "2025-08-15", p.Creates[0].Record.Date.String())
	assert.Empty(t, p.Updates)
	assert.Empty(t, p.Deletes)
	assert.Equal(t, ModeSelective, p.Mode)
}

func TestDiffEmptyWhenInSync(t *testing.T) {
	p := plan(
		[]records.Violation{v("2025-08-15", 1, "late")},
		[]records.Datapoint{dp("7", "2025-08-15", 1, "late")},
	)
	assert.True(t, p.Empty())
	assert.Equal(t, "no changes", p.Describe())
}

func TestDiffDeletesDuplicateLoser(t *testing.T) {
	p := plan(
		[]records.Violation{v("2025-08-15", 1, "late")},
		[]records.Datapoint{dp("7", "2025-08-15", 1, "late"), dp("9", "2025-08-15", 1, "late")},
	)
	assert.Empty(t, p.Creates)
	assert.Empty(t, p.Updates)
	require.Len(t, p.Deletes, 1)
	assert.Equal(t, "7", p.Deletes[0].ID)
	assert.Equal(t, ReasonDuplicate, p.Deletes[0].Reason)
}

func TestDiffDeletesOrphan(t *testing.T) {
	p := plan(nil, []records.Datapoint{dp("3", "2025-08-01", 1, "x")})
	assert.Empty(t, p.Creates)
	require.Len(t, p.Deletes, 1)
	assert.Equal(t, "3", p.Deletes[0].ID)
	assert.Equal(t, ReasonOrphan, p.Deletes[0].Reason)
}

func TestNuclearDeletesAllThenCreates(t *testing.T) {
	remote := make([]records.Datapoint, 0, 50)
	for i := 0; i < 50; i++ {
		remote = append(remote, dp(fmt.Sprint(100+i), records.MustParseDate("2025-01-01").AddDays(i).String(), 1, "old"))
	}
	p := Nuclear([]records.Violation{v("2025-08-15", 1, "late")}, remote)

	assert.Equal(t, ModeNuclear, p.Mode)
	assert.Len(t, p.Deletes, 50)
	require.Len(t, p.Creates, 1)
	assert.Empty(t, p.Updates)
	for _, d := range p.Deletes {
		assert.Equal(t, ReasonReset, d.Reason)
	}
	assert.Equal(t, Counts{Creates: 1, Deletes: 50}, p.Counts())
}

func TestNuclearIncludesDuplicatesAndMatches(t *testing.T) {
	remote := []records.Datapoint{
		dp("1", "2025-08-15", 1, "late"),
		dp("2", "2025-08-15", 1, "late"),
	}
	p := Nuclear([]records.Violation{v("2025-08-15", 1, "late")}, remote)
	assert.Len(t, p.Deletes, 2)
	assert.Len(t, p.Creates, 1)
}

func TestUpdateOnDrift(t *testing.T) {
	p := plan(
		[]records.Violation{v("2025-08-15", 1, "Night logger violation (4 detections)")},
		[]records.Datapoint{dp("7", "2025-08-15", 1, "edited by hand")},
	)
	require.Len(t, p.Updates, 1)
	assert.Equal(t, "7", p.Updates[0].ID)
	assert.Equal(t, "edited by hand", p.Updates[0].Have.Comment)
	assert.Equal(t, "Night logger violation (4 detections)", p.Updates[0].Want.Comment)

	p = plan(
		[]records.Violation{v("2025-08-15", 2, "c")},
		[]records.Datapoint{dp("7", "2025-08-15", 1, "c")},
	)
	require.Len(t, p.Updates, 1)
}

func TestUpdateTargetsSurvivor(t *testing.T) {
	p := plan(
		[]records.Violation{v("2025-08-15", 2, "new")},
		[]records.Datapoint{dp("7", "2025-08-15", 1, "old"), dp("9", "2025-08-15", 1, "old")},
	)
	require.Len(t, p.Updates, 1)
	assert.Equal(t, "9", p.Updates[0].ID)
	require.Len(t, p.Deletes, 1)
	assert.Equal(t, "7", p.Deletes[0].ID)
}

func TestOrdering(t *testing.T) {
	local := []records.Violation{
		v("2025-08-20", 1, ""),
		v("2025-08-10", 1, ""),
		v("2025-08-15", 2, ""),
		v("2025-08-12", 2, ""),
	}
	remote := []records.Datapoint{
		dp("50", "2025-08-30", 1, ""),
		dp("40", "2025-08-15", 1, ""),
		dp("30", "2025-08-12", 1, ""),
		dp("20", "2025-08-01", 1, ""),
		dp("10", "2025-08-01", 1, ""),
	}
	p := plan(local, remote)

	require.Len(t, p.Creates, 2)
	assert.Equal(t, "2025-08-10", p.Creates[0].Record.Date.String())
	assert.Equal(t, "2025-08-20", p.Creates[1].Record.Date.String())

	require.Len(t, p.Updates, 2)
	assert.Equal(t, "2025-08-12", p.Updates[0].Want.Date.String())
	assert.Equal(t, "2025-08-15", p.Updates[1].Want.Date.String())

	require.Len(t, p.Deletes, 3)
	assert.Equal(t, []string{"10", "20", "50"}, []string{p.Deletes[0].ID, p.Deletes[1].ID, p.Deletes[2].ID})
	assert.Equal(t, ReasonDuplicate, p.Deletes[0].Reason)
	assert.Equal(t, ReasonOrphan, p.Deletes[1].Reason)
}

func TestUndatedAlwaysDeleted(t *testing.T) {
	p := plan(nil, []records.Datapoint{{ID: "x", Value: 1}})
	require.Len(t, p.Deletes, 1)
	assert.Equal(t, ReasonUndated, p.Deletes[0].Reason)
}

func TestMinimality(t *testing.T) {
	// Every date whose remote state matches local appears in no operation.
	local := []records.Violation{v("2025-08-01", 1, "a"), v("2025-08-02", 1, "b"), v("2025-08-03", 1, "c")}
	remote := []records.Datapoint{dp("1", "2025-08-01", 1, "a"), dp("2", "2025-08-02", 1, "B"), dp("3", "2025-08-03", 1, "c")}
	p := plan(local, remote)

	touched := map[string]bool{}
	for _, c := range p.Creates {
		touched[c.Record.Date.String()] = true
	}
	for _, u := range p.Updates {
		touched[u.Want.Date.String()] = true
	}
	for _, d := range p.Deletes {
		touched[d.Date.String()] = true
	}
	assert.Equal(t, map[string]bool{"2025-08-02": true}, touched)
	assert.Equal(t, 1, p.Len())
}

func TestIdempotentAfterApplyingPlan(t *testing.T) {
	local := []records.Violation{v("2025-08-01", 1, "a"), v("2025-08-02", 3, "b")}
	remote := []records.Datapoint{dp("1", "2025-08-02", 1, "b"), dp("2", "2025-08-02", 1, "b"), dp("3", "2025-08-09", 1, "z")}
	first := plan(local, remote)
	require.False(t, first.Empty())

	// Simulate applying the plan to the remote.
	state := map[string]records.Datapoint{}
	for _, p := range remote {
		state[p.ID] = p
	}
	for _, d := range first.Deletes {
		delete(state, d.ID)
	}
	for i, c := range first.Creates {
		id := fmt.Sprintf("new%d", i)
		state[id] = records.Datapoint{ID: id, Date: c.Record.Date, Value: c.Record.Value, Comment: c.Record.Comment}
	}
	for _, u := range first.Updates {
		p := state[u.ID]
		p.Value, p.Comment = u.Want.Value, u.Want.Comment
		state[u.ID] = p
	}
	after := make([]records.Datapoint, 0, len(state))
	for _, p := range state {
		after = append(after, p)
	}

	assert.True(t, plan(local, after).Empty())
}

func TestDescribe(t *testing.T) {
	p := plan(
		[]records.Violation{v("2025-08-15", 1, "late"), v("2025-08-16", 2, "x")},
		[]records.Datapoint{dp("7", "2025-08-16", 1, "x"), dp("3", "2025-08-01", 1, "x")},
	)
	out := p.Describe()
	assert.Contains(t, out, "- 2025-08-01 3 (orphan)")
	assert.Contains(t, out, "+ 2025-08-15 value=1")
	assert.Contains(t, out, "~ 2025-08-16 7 value=1->2")
}

func TestDiffIgnoresRemoteOrder(t *testing.T) {
	local := []records.Violation{v("2025-08-01", 1, "a"), v("2025-08-02", 3, "b"), v("2025-08-05", 1, "e")}
	remote := []records.Datapoint{
		dp("4", "2025-08-02", 1, "b"),
		dp("11", "2025-08-02", 1, "b"),
		dp("3", "2025-08-09", 1, "z"),
		dp("8", "2025-08-01", 1, "a"),
		{ID: "u", Value: 1},
	}
	want := plan(local, remote)

	reversed := make([]records.Datapoint, len(remote))
	for i, p := range remote {
		reversed[len(remote)-1-i] = p
	}
	if diff := cmp.Diff(want, plan(local, reversed)); diff != "" {
		t.Errorf("plan depends on listing order (-want +got):\n%s", diff)
	}
}
