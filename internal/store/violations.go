package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

// Night aggregates the night-time detections attributed to one local day.
type Night struct {
	Date       records.Date `json:"date" yaml:"date"`
	Detections int          `json:"detections" yaml:"detections"`
	First      time.Time    `json:"first" yaml:"first"`
}

// Violation converts the night into a local record.
func (n Night) Violation() records.Violation {
	return records.Violation{
		Date:    n.Date,
		Value:   1,
		Comment: ViolationComment(n.Detections),
	}
}

// ViolationComment is the comment carried by a night's datapoint.
func ViolationComment(detections int) string {
	return fmt.Sprintf("Night logger violation (%d detections)", detections)
}

// Nights groups every is_night sample by the local day its night belongs
// to. Samples taken before boundaryHour count toward the previous day.
// Rows whose timestamp cannot be parsed are counted in skipped.
func (s *Store) Nights(ctx context.Context, loc *time.Location, boundaryHour int) (nights []Night, skipped int, err error) {
	if loc == nil {
		loc = time.Local
	}
	rows, err := s.db.QueryContext(ctx, `SELECT logged_at FROM logs WHERE is_night = 1 ORDER BY id`)
	if err != nil {
		return nil, 0, errors.WrapIO("query", s.path, err)
	}
	defer rows.Close()

	byDate := make(map[records.Date]*Night)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, errors.WrapIO("scan", s.path, err)
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			skipped++
			continue
		}
		local := t.In(loc)
		date := records.NightOf(local, boundaryHour)
		n, ok := byDate[date]
		if !ok {
			n = &Night{Date: date, First: local}
			byDate[date] = n
		}
		n.Detections++
		if local.Before(n.First) {
			n.First = local
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.WrapIO("query", s.path, err)
	}

	nights = make([]Night, 0, len(byDate))
	for _, n := range byDate {
		nights = append(nights, *n)
	}
	sort.Slice(nights, func(i, j int) bool { return nights[i].Date.Before(nights[j].Date) })
	return nights, skipped, nil
}
