package table

import (
	"strconv"
	"time"

	"github.com/agentstation/nightsync/internal/cmd/emoji"
	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/planner"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

const commentWidth = 48

// PlanToTableData lists every planned operation in execution order:
// deletes, then creates, then updates.
func PlanToTableData(plan *planner.Plan, wide bool) Data {
	headers := []string{"Action", "Date", "ID", "Value", "Comment"}
	if wide {
		headers = append(headers, "Reason", "Current")
	}

	var rows [][]string
	if plan == nil {
		return Data{Headers: headers}
	}

	for _, d := range plan.Deletes {
		row := []string{
			emoji.Delete + " delete",
			orDash(d.Date.String()),
			d.ID,
			FormatValue(d.Point.Value),
			Truncate(d.Point.Comment, commentWidth),
		}
		if wide {
			row = append(row, string(d.Reason), "-")
		}
		rows = append(rows, row)
	}
	for _, c := range plan.Creates {
		row := []string{
			emoji.Create + " create",
			c.Record.Date.String(),
			"-",
			FormatValue(c.Record.Value),
			Truncate(c.Record.Comment, commentWidth),
		}
		if wide {
			row = append(row, "missing", "-")
		}
		rows = append(rows, row)
	}
	for _, u := range plan.Updates {
		row := []string{
			emoji.Update + " update",
			u.Want.Date.String(),
			u.ID,
			FormatValue(u.Want.Value),
			Truncate(u.Want.Comment, commentWidth),
		}
		if wide {
			current := FormatValue(u.Have.Value) + " " + strconv.Quote(Truncate(u.Have.Comment, commentWidth))
			row = append(row, "changed", current)
		}
		rows = append(rows, row)
	}

	align := []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft}
	if wide {
		align = append(align, AlignLeft, AlignLeft)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// FailuresToTableData lists operations that did not apply.
func FailuresToTableData(failures []executor.Failure) Data {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			string(f.Kind),
			orDash(f.Date.String()),
			orDash(f.ID),
			Truncate(f.Error(), 80),
		})
	}
	return Data{
		Headers: []string{"Action", "Date", "ID", "Error"},
		Rows:    rows,
	}
}

// ResultToTableData summarizes a run as property/value rows.
func ResultToTableData(r *pkgsync.Result) Data {
	rows := [][]string{
		{"Run", r.RunID},
		{"Goal", r.Goal},
		{"State", string(r.State)},
		{"Local records", strconv.Itoa(r.LocalRecords)},
		{"Local skipped", strconv.Itoa(r.LocalSkipped)},
		{"Remote datapoints", strconv.Itoa(r.RemotePoints)},
		{"Duplicated dates", strconv.Itoa(r.DuplicateDates)},
	}
	if r.Plan != nil {
		c := r.Plan.Counts()
		rows = append(rows,
			[]string{"Mode", string(r.Plan.Mode)},
			[]string{"Planned", strconv.Itoa(c.Total())},
		)
	}
	if r.Report != nil {
		rows = append(rows,
			[]string{"Created", strconv.Itoa(r.Report.Created)},
			[]string{"Updated", strconv.Itoa(r.Report.Updated)},
			[]string{"Deleted", strconv.Itoa(r.Report.Deleted)},
			[]string{"Failed", strconv.Itoa(r.Report.Failed)},
			[]string{"Skipped", strconv.Itoa(r.Report.Skipped)},
		)
	}
	rows = append(rows,
		[]string{"Duration", r.Duration.Round(time.Millisecond).String()},
		[]string{"Summary", r.Summary()},
	)
	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft},
	}
}

// PostingsToTableData lists ledger entries.
func PostingsToTableData(postings []store.Posting) Data {
	rows := make([][]string, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, []string{p.Date.String(), p.PostedAt.Local().Format(time.RFC3339)})
	}
	return Data{
		Headers: []string{"Date", "Posted At"},
		Rows:    rows,
	}
}

// NightsToTableData lists nights extracted from the sampler database.
func NightsToTableData(nights []store.Night, posted map[string]bool) Data {
	rows := make([][]string, 0, len(nights))
	for _, n := range nights {
		mark := emoji.Optional
		if posted[n.Date.String()] {
			mark = emoji.Success
		}
		rows = append(rows, []string{
			n.Date.String(),
			strconv.Itoa(n.Detections),
			n.First.Local().Format("15:04"),
			mark,
		})
	}
	return Data{
		Headers:         []string{"Night", "Detections", "First", "Posted"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignLeft, AlignCenter},
	}
}
