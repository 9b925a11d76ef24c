package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/nightsync/internal/store"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/records"
)

// Artifact is the violations.json document published by the night logger.
type Artifact struct {
	Violations         []ArtifactRecord `json:"violations"`
	PostedDates        []string         `json:"posted_dates"`
	LastUpdated        string           `json:"last_updated"`
	TotalViolations    int              `json:"total_violations"`
	UnpostedViolations []ArtifactRecord `json:"unposted_violations"`
}

// ArtifactRecord is one violation entry. Value is kept raw so that both
// JSON numbers and numeric strings are accepted.
type ArtifactRecord struct {
	Date      string          `json:"date"`
	Timestamp string          `json:"timestamp,omitempty"`
	Value     json.RawMessage `json:"value"`
	Comment   string          `json:"comment"`
	Daystamp  string          `json:"daystamp,omitempty"`
}

// violation validates r. The date comes from date, falling back to
// daystamp.
func (r ArtifactRecord) violation() (records.Violation, string) {
	raw := r.Date
	if raw == "" {
		raw = r.Daystamp
	}
	if raw == "" {
		return records.Violation{}, "missing date"
	}
	date, err := records.ParseDate(raw)
	if err != nil {
		return records.Violation{}, "malformed date"
	}
	value, ok := parseValue(r.Value)
	if !ok {
		return records.Violation{}, "non-numeric value"
	}
	return records.Violation{Date: date, Value: value, Comment: r.Comment}, ""
}

func parseValue(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// ParseArtifact decodes and validates an artifact read from r. Malformed
// records and repeated dates are skipped and listed in Dataset.Skipped.
func ParseArtifact(r io.Reader, name string, opts Options) (*records.Dataset, error) {
	var doc Artifact
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.NewLocalDataUnavailableError(name, "unparseable artifact",
			errors.WrapParse("json", name, err))
	}
	if doc.Violations == nil {
		return nil, errors.NewLocalDataUnavailableError(name, "artifact has no violations list", nil)
	}

	b := records.NewBuilder(name)
	for i, rec := range doc.Violations {
		v, reason := rec.violation()
		if reason != "" {
			b.Skip(i, rec.Date, reason)
			continue
		}
		b.Add(i, v)
	}
	return finish(b, name, opts)
}

// BuildArtifact assembles the document the night logger publishes from its
// nights and posted-date ledger. Violations are listed newest first.
func BuildArtifact(nights []store.Night, postings []store.Posting, now time.Time) Artifact {
	posted := make(map[records.Date]bool, len(postings))
	doc := Artifact{
		Violations:         make([]ArtifactRecord, 0, len(nights)),
		PostedDates:        make([]string, 0, len(postings)),
		UnpostedViolations: []ArtifactRecord{},
		LastUpdated:        now.UTC().Format(time.RFC3339),
	}
	for _, p := range postings {
		posted[p.Date] = true
		doc.PostedDates = append(doc.PostedDates, p.Date.String())
	}
	for i := len(nights) - 1; i >= 0; i-- {
		n := nights[i]
		v := n.Violation()
		rec := ArtifactRecord{
			Date:      v.Date.String(),
			Timestamp: n.First.UTC().Format(time.RFC3339),
			Value:     json.RawMessage(strconv.FormatFloat(v.Value, 'f', -1, 64)),
			Comment:   v.Comment,
			Daystamp:  v.Date.Daystamp(),
		}
		doc.Violations = append(doc.Violations, rec)
		if !posted[v.Date] {
			doc.UnpostedViolations = append(doc.UnpostedViolations, rec)
		}
	}
	doc.TotalViolations = len(doc.Violations)
	return doc
}

// WriteArtifact encodes doc as indented JSON.
func WriteArtifact(w io.Writer, doc Artifact) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ArtifactSource loads a violations.json artifact through a Transport.
type ArtifactSource struct {
	transport Transport
	opts      Options
}

// NewArtifactSource returns a source reading the artifact through t.
func NewArtifactSource(t Transport, opts Options) *ArtifactSource {
	return &ArtifactSource{transport: t, opts: opts}
}

// Name implements Source.
func (s *ArtifactSource) Name() string { return s.transport.Name() }

// Transport returns the underlying transport.
func (s *ArtifactSource) Transport() Transport { return s.transport }

// Load implements Source.
func (s *ArtifactSource) Load(ctx context.Context) (*records.Dataset, error) {
	name := s.transport.Name()
	rc, err := s.transport.Open(ctx)
	if err != nil {
		if errors.IsLocalDataUnavailable(err) {
			return nil, err
		}
		return nil, errors.NewLocalDataUnavailableError(name, "cannot read artifact", err)
	}
	defer rc.Close()

	ds, err := ParseArtifact(rc, name, s.opts)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	for _, skip := range ds.Skipped {
		logger.Warn().
			Int("index", skip.Index).
			Str("date", skip.Date).
			Str("reason", skip.Reason).
			Msg("Skipped artifact record")
	}
	logger.Debug().
		Str("source", name).
		Int("records", len(ds.Records)).
		Int("skipped", len(ds.Skipped)).
		Msg("Loaded local dataset")
	return ds, nil
}
