package app

import (
	"os"

	"github.com/agentstation/nightsync/pkg/errors"
)

// Exit statuses.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// ExitCode maps a command error to the process exit status: 2 when some
// operations failed after the run started applying the plan, 1 for anything
// that stopped the run.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsPartialFailure(err):
		return ExitPartial
	default:
		return ExitFatal
	}
}

// ExitOnError prints err and exits with its status. It returns when err is nil.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	//nolint:errcheck // Ignoring write error since we're exiting anyway
	_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
	os.Exit(ExitCode(err))
}
