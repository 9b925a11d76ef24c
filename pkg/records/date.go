// Package records defines the data model shared by the sync engine: civil
// dates used as sync keys, local violation records, and remote datapoints.
package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
)

// Date is a civil calendar day with no time zone. The zero value is invalid.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD date. It also accepts the remote's
// YYYYMMDD daystamp form.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	layout := constants.DateFormat
	if len(s) == len(constants.DaystampFormat) && !strings.Contains(s, "-") {
		layout = constants.DaystampFormat
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, errors.NewParseError("date", "", fmt.Sprintf("invalid calendar date %q", s), err)
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error. Intended for tests
// and literals.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NightOf returns the date a moment belongs to when nights are counted
// from evening to early morning: times before boundaryHour roll back to the
// previous day.
func NightOf(t time.Time, boundaryHour int) Date {
	if t.Hour() < boundaryHour {
		t = t.AddDate(0, 0, -1)
	}
	return DateOf(t)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Noon returns 12:00 of d in loc, the timestamp used for remote datapoints.
func (d Date) Noon(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, constants.NoonHour, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 ordering d against o chronologically.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.In(time.UTC).Format(constants.DateFormat)
}

// Daystamp formats d as YYYYMMDD.
func (d Date) Daystamp() string {
	return d.In(time.UTC).Format(constants.DaystampFormat)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so Date works as a map key
// in JSON and YAML output.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
