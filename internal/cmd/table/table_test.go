package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/planner"
	"github.com/agentstation/nightsync/pkg/records"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

var night = records.MustParseDate("2025-08-15")

func TestPlanToTableDataOrder(t *testing.T) {
	plan := &planner.Plan{
		Creates: []planner.Create{{Record: records.Violation{Date: night, Value: 1, Comment: "late"}}},
		Updates: []planner.Update{{
			ID:   "9",
			Want: records.Violation{Date: night.AddDays(-1), Value: 1, Comment: "late"},
			Have: records.Datapoint{ID: "9", Value: 2, Comment: "edited"},
		}},
		Deletes: []planner.Delete{{ID: "7", Date: night, Reason: planner.ReasonDuplicate}},
	}

	data := PlanToTableData(plan, false)
	require.Equal(t, 3, data.Len())
	assert.Equal(t, "- delete", data.Rows[0][0])
	assert.Equal(t, "+ create", data.Rows[1][0])
	assert.Equal(t, "~ update", data.Rows[2][0])
	assert.Len(t, data.Headers, 5)

	wide := PlanToTableData(plan, true)
	assert.Len(t, wide.Headers, 7)
	assert.Equal(t, "duplicate", wide.Rows[0][5])
	assert.Equal(t, `2 "edited"`, wide.Rows[2][6])

	assert.Zero(t, PlanToTableData(nil, false).Len())
}

func TestResultToTableData(t *testing.T) {
	r := &pkgsync.Result{
		RunID:  "run",
		Goal:   "nightlogger",
		State:  pkgsync.StateReported,
		Plan:   &planner.Plan{Mode: planner.ModeSelective},
		Report: &executor.Report{},
	}
	data := ResultToTableData(r)
	assert.Equal(t, []string{"Property", "Value"}, data.Headers)
	last := data.Rows[len(data.Rows)-1]
	assert.Equal(t, []string{"Summary", "No changes detected"}, last)
}

func TestLedgerAndNights(t *testing.T) {
	at := time.Date(2025, 8, 16, 1, 30, 0, 0, time.UTC)
	data := PostingsToTableData([]store.Posting{{Date: night, PostedAt: at}})
	require.Equal(t, 1, data.Len())
	assert.Equal(t, "2025-08-15", data.Rows[0][0])

	nights := NightsToTableData([]store.Night{
		{Date: night, Detections: 3, First: at},
		{Date: night.AddDays(1), Detections: 1, First: at},
	}, map[string]bool{"2025-08-15": true})
	assert.Equal(t, "✓", nights.Rows[0][3])
	assert.Equal(t, "-", nights.Rows[1][3])
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "1", FormatValue(1))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
}
