package application

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/nightsync"
	"github.com/agentstation/nightsync/internal/config"
	"github.com/agentstation/nightsync/internal/metrics"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/internal/store"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	ConfigFunc       func() *config.Config
	SyncerFunc       func() (nightsync.Syncer, error)
	SourceFunc       func() (source.Source, error)
	StoreFunc        func(readOnly bool) (*store.Store, error)
	MetricsFunc      func() *metrics.Metrics
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	NowFunc          func() time.Time
	Input            string
}

var _ Application = (*Mock)(nil)

// Config returns the mock config or an empty one.
func (m *Mock) Config() *config.Config {
	if m.ConfigFunc != nil {
		return m.ConfigFunc()
	}
	return &config.Config{}
}

// Syncer returns a syncer using the mock function or nil.
func (m *Mock) Syncer() (nightsync.Syncer, error) {
	if m.SyncerFunc != nil {
		return m.SyncerFunc()
	}
	return nil, nil
}

// Source returns a source using the mock function or nil.
func (m *Mock) Source() (source.Source, error) {
	if m.SourceFunc != nil {
		return m.SourceFunc()
	}
	return nil, nil
}

// Store returns a store using the mock function or nil.
func (m *Mock) Store(readOnly bool) (*store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(readOnly)
	}
	return nil, nil
}

// Metrics returns metrics using the mock function or nil.
func (m *Mock) Metrics() *metrics.Metrics {
	if m.MetricsFunc != nil {
		return m.MetricsFunc()
	}
	return nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Now returns the mock time or time.Now.
func (m *Mock) Now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now()
}

// Stdin returns Input as a reader.
func (m *Mock) Stdin() io.Reader {
	return strings.NewReader(m.Input)
}

// Version returns "dev".
func (m *Mock) Version() string { return "dev" }

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }
