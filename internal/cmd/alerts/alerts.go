// Package alerts provides status lines for command results.
package alerts

import (
	"fmt"
	"time"

	"github.com/agentstation/nightsync/pkg/errors"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Alert represents a status notification.
type Alert struct {
	Level     Level
	Message   string
	Details   []string
	Timestamp time.Time
	Err       error
}

// New creates a new alert with the given level and message.
func New(level Level, message string) *Alert {
	return &Alert{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new alert with a formatted message.
func Newf(level Level, format string, args ...any) *Alert {
	return New(level, fmt.Sprintf(format, args...))
}

// ForRun describes the outcome of a sync run. err is the error Sync
// returned; result may be nil when options were rejected.
func ForRun(result *pkgsync.Result, err error) *Alert {
	switch {
	case err == nil && result != nil:
		a := New(LevelSuccess, result.Summary())
		if result.LocalSkipped > 0 {
			a.Level = LevelWarning
			a.WithDetails(fmt.Sprintf("%d local records skipped as invalid", result.LocalSkipped))
		}
		return a
	case errors.IsPartialFailure(err):
		a := New(LevelWarning, "Sync finished with failures").WithError(err)
		if result != nil && result.Report != nil {
			a.WithDetails(result.Summary())
			for _, f := range result.Report.Failures {
				a.WithDetails(fmt.Sprintf("%s %s: %s", f.Kind, f.Date, f.Error()))
			}
		}
		return a
	default:
		a := New(LevelError, "Sync aborted").WithError(err)
		if result != nil {
			a.WithDetails(fmt.Sprintf("state: %s", result.State))
		}
		if errors.IsFatal(err) && !errors.IsConfiguration(err) {
			a.WithDetails("no remote datapoint was changed")
		}
		return a
	}
}

// WithError adds an underlying error to the alert.
func (a *Alert) WithError(err error) *Alert {
	a.Err = err
	return a
}

// WithDetails adds additional context details to the alert.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns the icon, message and error on one line.
func (a *Alert) String() string {
	message := fmt.Sprintf("%s %s", a.Level.Icon(), a.Message)
	if a.Err != nil {
		message += fmt.Sprintf(": %v", a.Err)
	}
	return message
}

// Writer handles alert output to different formats and destinations.
type Writer interface {
	WriteAlert(alert *Alert) error
}
