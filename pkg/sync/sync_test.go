package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/planner"
	"github.com/agentstation/nightsync/pkg/records"
)

func TestOptionsValidate(t *testing.T) {
	opts := Defaults()
	require.NoError(t, opts.Validate("nightlogger"))

	opts = Defaults().Apply(WithNuclear("other"))
	err := opts.Validate("nightlogger")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	opts = Defaults().Apply(WithNuclear("nightlogger"))
	assert.NoError(t, opts.Validate("nightlogger"))

	opts = Defaults().Apply(WithConcurrency(0))
	assert.True(t, errors.IsValidationError(opts.Validate("g")))

	opts = Defaults().Apply(WithTimeout(-1))
	assert.True(t, errors.IsValidationError(opts.Validate("g")))
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	for _, s := range []State{StateLoadingLocal, StateFetchingRemote, StateCleaning, StatePlanning, StateExecuting, StateReported} {
		m.To(s)
	}
	assert.True(t, m.Current().Terminal())
	assert.Len(t, m.Path(), 7)
	assert.Equal(t, StateIdle, m.Path()[0])
}

func TestMachineFailurePaths(t *testing.T) {
	assert.True(t, StateLoadingLocal.CanTransition(StateFailed))
	assert.True(t, StateFetchingRemote.CanTransition(StateFailed))
	assert.False(t, StateExecuting.CanTransition(StateFailed))
	assert.False(t, StateCleaning.CanTransition(StateFailed))
	assert.True(t, StatePlanning.CanTransition(StateReported), "dry run skips execution")

	m := NewMachine()
	m.To(StateLoadingLocal)
	assert.Panics(t, func() { m.To(StateExecuting) })
}

func TestResultErrAndSummary(t *testing.T) {
	plan := &planner.Plan{Creates: []planner.Create{{Record: records.Violation{Date: records.MustParseDate("2024-03-01")}}}}

	r := &Result{Plan: &planner.Plan{}}
	assert.Equal(t, "No changes detected", r.Summary())
	assert.NoError(t, r.Err())

	r = &Result{Plan: plan, DryRun: true}
	assert.Equal(t, "1 to create, 0 to update, 0 to delete (Dry run)", r.Summary())

	r = &Result{Plan: plan, Report: &executor.Report{Created: 1}}
	assert.NoError(t, r.Err())
	assert.Equal(t, "1 created, 0 updated, 0 deleted", r.Summary())

	r = &Result{Plan: plan, Report: &executor.Report{Failed: 1}}
	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.IsPartialFailure(err))
	assert.False(t, errors.IsFatal(err))
}
