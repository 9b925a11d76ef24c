package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/records"
)

// Posting is one ledger entry.
type Posting struct {
	Date     records.Date `json:"date" yaml:"date"`
	PostedAt time.Time    `json:"posted_at" yaml:"posted_at"`
}

// Ledger is the append-only set of local days whose upload has been
// triggered. A day is recorded at most once.
type Ledger interface {
	Posted(ctx context.Context, date records.Date) (bool, error)
	Mark(ctx context.Context, date records.Date, at time.Time) (bool, error)
	Postings(ctx context.Context) ([]Posting, error)
}

var _ Ledger = (*Store)(nil)

// Posted reports whether date has been marked.
func (s *Store) Posted(ctx context.Context, date records.Date) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE ymd = ? LIMIT 1`, date.String()).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, errors.WrapIO("query", s.path, err)
	}
}

// Mark records date as posted at at. It reports false when the date was
// already present, in which case the original timestamp is kept.
func (s *Store) Mark(ctx context.Context, date records.Date, at time.Time) (bool, error) {
	if s.readOnly {
		return false, errors.NewIOError("write", s.path, errors.New("database is read-only"))
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO posts (ymd, posted_at_utc) VALUES (?, ?)`,
		date.String(), formatTimestamp(at))
	if err != nil {
		return false, errors.WrapIO("insert", s.path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapIO("insert", s.path, err)
	}
	return n == 1, nil
}

// Postings lists the ledger in date order. Rows that do not hold a valid
// date are left out.
func (s *Store) Postings(ctx context.Context) ([]Posting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ymd, posted_at_utc FROM posts ORDER BY ymd`)
	if err != nil {
		return nil, errors.WrapIO("query", s.path, err)
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var ymd, at string
		if err := rows.Scan(&ymd, &at); err != nil {
			return nil, errors.WrapIO("scan", s.path, err)
		}
		date, err := records.ParseDate(ymd)
		if err != nil {
			continue
		}
		p := Posting{Date: date}
		if t, err := parseTimestamp(at); err == nil {
			p.PostedAt = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("query", s.path, err)
	}
	return out, nil
}
