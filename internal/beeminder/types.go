package beeminder

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/agentstation/nightsync/pkg/records"
)

// datapointID accepts ids encoded as JSON strings or numbers.
type datapointID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *datapointID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = datapointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = datapointID(n.String())
	return nil
}

// apiDatapoint is the wire form of a datapoint.
type apiDatapoint struct {
	ID        datapointID `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Daystamp  string      `json:"daystamp"`
	Value     float64     `json:"value"`
	Comment   string      `json:"comment"`
	RequestID string      `json:"requestid"`
	UpdatedAt int64       `json:"updated_at"`
}

// apiWrite is the body of create and update requests.
type apiWrite struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Daystamp  string  `json:"daystamp,omitempty"`
	Comment   string  `json:"comment"`
	RequestID string  `json:"requestid,omitempty"`
}

// toRecord converts the wire form. The date comes from daystamp, falling
// back to the timestamp in loc; when neither is usable the date is zero.
func (p apiDatapoint) toRecord(loc *time.Location) records.Datapoint {
	dp := records.Datapoint{
		ID:        string(p.ID),
		Value:     p.Value,
		Comment:   p.Comment,
		Timestamp: p.Timestamp,
		RequestID: p.RequestID,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Daystamp != "" {
		if d, err := records.ParseDate(p.Daystamp); err == nil {
			dp.Date = d
			return dp
		}
	}
	if p.Timestamp > 0 {
		dp.Date = records.DateOf(time.Unix(p.Timestamp, 0).In(loc))
	}
	return dp
}
