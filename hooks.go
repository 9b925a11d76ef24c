package nightsync

import (
	"sync"

	"github.com/agentstation/nightsync/pkg/executor"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Hook function types for run events
type (
	// RunCompleteHook is called once a run reaches a terminal state. err is
	// the error Sync returned.
	RunCompleteHook func(result *pkgsync.Result, err error)

	// OperationFailedHook is called for every operation that did not apply.
	OperationFailedHook func(failure executor.Failure)
)

// hooks manages event callbacks for sync runs
type hooks struct {
	mu                sync.RWMutex
	onRunComplete     []RunCompleteHook
	onOperationFailed []OperationFailedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnRunComplete registers a callback for finished runs
func (h *hooks) OnRunComplete(fn RunCompleteHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRunComplete = append(h.onRunComplete, fn)
}

// OnOperationFailed registers a callback for failed operations
func (h *hooks) OnOperationFailed(fn OperationFailedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOperationFailed = append(h.onOperationFailed, fn)
}

// trigger runs the hooks for a finished run, failures first.
func (h *hooks) trigger(result *pkgsync.Result, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if result != nil && result.Report != nil {
		for _, f := range result.Report.Failures {
			for _, fn := range h.onOperationFailed {
				fn(f)
			}
		}
	}
	for _, fn := range h.onRunComplete {
		fn(result, err)
	}
}
