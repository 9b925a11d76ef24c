package nightsync_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync"
	"github.com/agentstation/nightsync/internal/beeminder"
	"github.com/agentstation/nightsync/internal/beeminder/beemindertest"
	"github.com/agentstation/nightsync/internal/metrics"
	"github.com/agentstation/nightsync/internal/source"
	"github.com/agentstation/nightsync/internal/transport"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/records"
	"github.com/agentstation/nightsync/pkg/sync"
)

const goal = "nightlogger"

var night = records.MustParseDate("2025-08-15")

func late(d records.Date) records.Violation {
	return records.Violation{Date: d, Value: 1, Comment: "late"}
}

type harness struct {
	srv    *beemindertest.Server
	client *beeminder.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logging.DisableLoggingForTest(t)

	srv := beemindertest.NewServer("secret")
	t.Cleanup(srv.Close)

	retry := transport.RetryPolicy{MaxRetries: 2, Base: time.Millisecond, Max: 2 * time.Millisecond}
	client, err := beeminder.New(beeminder.Config{
		BaseURL:   srv.URL,
		Username:  "alice",
		Goal:      goal,
		AuthToken: "secret",
		PageSize:  10,
		Location:  time.UTC,
		Retry:     &retry,
	})
	require.NoError(t, err)
	return &harness{srv: srv, client: client}
}

func (h *harness) syncer(t *testing.T, src source.Source, opts ...nightsync.Option) nightsync.Syncer {
	t.Helper()
	opts = append([]nightsync.Option{nightsync.WithSource(src), nightsync.WithRemote(h.client)}, opts...)
	s, err := nightsync.New(opts...)
	require.NoError(t, err)
	return s
}

func static(vs ...records.Violation) source.Source {
	return source.NewStatic("static", vs, source.Options{AllowEmpty: true})
}

func TestSyncCreatesMissingDate(t *testing.T) {
	h := newHarness(t)

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Plan.Counts().Creates)
	assert.Equal(t, 1, result.Report.Created)

	points := h.srv.Points(goal)
	require.Len(t, points, 1)
	assert.Equal(t, night, points[0].Date)
	assert.Equal(t, 1.0, points[0].Value)
	assert.Equal(t, "late", points[0].Comment)
}

func TestSyncNoOpWhenInSync(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "7", Date: night, Value: 1, Comment: "late"})

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Plan.Empty())
	assert.False(t, result.HasChanges())
	assert.Zero(t, h.srv.Mutations())
}

func TestSyncRemovesDuplicateRemoteDate(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal,
		records.Datapoint{ID: "7", Date: night, Value: 1, Comment: "late"},
		records.Datapoint{ID: "9", Date: night, Value: 1, Comment: "late"},
	)

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Plan.Deletes, 1)
	assert.Equal(t, "7", result.Plan.Deletes[0].ID)
	assert.Empty(t, result.Plan.Updates)
	assert.Equal(t, 1, result.DuplicateDates)

	points := h.srv.Points(goal)
	require.Len(t, points, 1)
	assert.Equal(t, "9", points[0].ID)
}

func TestSyncDeletesOrphan(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "3", Date: records.MustParseDate("2025-08-01"), Value: 1, Comment: "x"})

	result, err := h.syncer(t, static()).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Plan.Deletes, 1)
	assert.Equal(t, "3", result.Plan.Deletes[0].ID)
	assert.Empty(t, h.srv.Points(goal))
}

func TestSyncNuclearReset(t *testing.T) {
	h := newHarness(t)
	start := records.MustParseDate("2024-01-01")
	for i := 0; i < 50; i++ {
		h.srv.Seed(goal, records.Datapoint{Date: start.AddDays(i), Value: 2, Comment: "manual"})
	}

	result, err := h.syncer(t, static(late(night))).Sync(context.Background(), sync.WithNuclear(goal))
	require.NoError(t, err)
	c := result.Plan.Counts()
	assert.Equal(t, 50, c.Deletes)
	assert.Equal(t, 1, c.Creates)
	assert.Zero(t, c.Updates)
	assert.True(t, result.Nuclear)

	points := h.srv.Points(goal)
	require.Len(t, points, 1)
	assert.Equal(t, night, points[0].Date)
}

func TestNuclearRequiresExactGoal(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "3", Date: night, Value: 1, Comment: "x"})

	result, err := h.syncer(t, static(late(night))).Sync(context.Background(), sync.WithNuclear("nightlog"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsConfiguration(err))
	assert.Zero(t, h.srv.Calls(http.MethodGet))
	assert.Zero(t, h.srv.Mutations())
}

func TestSecondRunIsNoop(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal,
		records.Datapoint{ID: "1", Date: records.MustParseDate("2025-08-01"), Value: 1, Comment: "stale"},
		records.Datapoint{ID: "2", Date: records.MustParseDate("2025-08-02"), Value: 5, Comment: "edited"},
		records.Datapoint{ID: "4", Date: records.MustParseDate("2025-08-02"), Value: 1, Comment: "late"},
	)
	s := h.syncer(t, static(
		late(records.MustParseDate("2025-08-02")),
		late(records.MustParseDate("2025-08-03")),
		late(night),
	))

	_, err := s.Sync(context.Background())
	require.NoError(t, err)
	mutations := h.srv.Mutations()

	result, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Plan.Empty())
	assert.Equal(t, mutations, h.srv.Mutations())
	assert.Len(t, h.srv.Points(goal), 3)
}

func TestUpdateRewritesInPlace(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "12", Date: night, Value: 3, Comment: "edited"})

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Report.Updated)

	points := h.srv.Points(goal)
	require.Len(t, points, 1)
	assert.Equal(t, "12", points[0].ID)
	assert.Equal(t, "late", points[0].Comment)
	assert.Equal(t, 1.0, points[0].Value)
}

func TestLocalFailureNeverTouchesRemote(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "3", Date: night, Value: 1, Comment: "late"})

	src, err := source.Open(filepath.Join(t.TempDir(), "violations.json"), source.Options{})
	require.NoError(t, err)

	result, err := h.syncer(t, src).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err))
	assert.True(t, errors.IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, sync.StateFailed, result.State)
	assert.Nil(t, result.Plan)
	assert.Zero(t, h.srv.Mutations())
	assert.Len(t, h.srv.Points(goal), 1)
}

func TestEmptyLocalIsFatalByDefault(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "3", Date: night, Value: 1, Comment: "late"})

	src := source.NewStatic("static", nil, source.Options{})
	_, err := h.syncer(t, src).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsLocalDataUnavailable(err))
	assert.Zero(t, h.srv.Mutations())
}

func TestRemoteFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.FailNext(http.MethodGet, http.StatusBadGateway, 10)

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRemoteFetch(err))
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, sync.StateFailed, result.State)
	assert.Zero(t, h.srv.Mutations())
}

func TestPartialFailureContinues(t *testing.T) {
	h := newHarness(t)
	bad := records.MustParseDate("2025-08-14")
	h.srv.FailCreates(bad)

	s := h.syncer(t, static(late(bad), late(night)))
	var failures []executor.Failure
	s.OnOperationFailed(func(f executor.Failure) { failures = append(failures, f) })

	result, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsPartialFailure(err))
	assert.False(t, errors.IsFatal(err))
	assert.Equal(t, 1, result.Report.Created)
	assert.Equal(t, 1, result.Report.Failed)
	assert.Equal(t, sync.StateReported, result.State)
	assert.Equal(t, []records.Date{bad}, result.Report.FailedDates())

	require.Len(t, failures, 1)
	assert.Equal(t, bad, failures[0].Date)

	points := h.srv.Points(goal)
	require.Len(t, points, 1)
	assert.Equal(t, night, points[0].Date)
}

func TestDryRunMakesNoMutations(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(goal, records.Datapoint{ID: "3", Date: records.MustParseDate("2025-08-01"), Value: 1, Comment: "x"})

	result, err := h.syncer(t, static(late(night))).Sync(context.Background(), sync.WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Nil(t, result.Report)
	assert.Equal(t, 2, result.Plan.Len())
	assert.Zero(t, h.srv.Mutations())

	path := result.Transitions
	require.GreaterOrEqual(t, len(path), 2)
	assert.Equal(t, []sync.State{sync.StatePlanning, sync.StateReported}, path[len(path)-2:])
	assert.Contains(t, result.Summary(), "(Dry run)")
}

func TestRunStatesOnSuccess(t *testing.T) {
	h := newHarness(t)

	result, err := h.syncer(t, static(late(night))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []sync.State{
		sync.StateIdle,
		sync.StateLoadingLocal,
		sync.StateFetchingRemote,
		sync.StateCleaning,
		sync.StatePlanning,
		sync.StateExecuting,
		sync.StateReported,
	}, result.Transitions)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, goal, result.Goal)
}

func TestRunCompleteHookAndMetrics(t *testing.T) {
	h := newHarness(t)
	m := metrics.New()
	s := h.syncer(t, static(late(night)), nightsync.WithMetrics(m))

	var calls int
	var got *sync.Result
	s.OnRunComplete(func(r *sync.Result, err error) {
		calls++
		got = r
		assert.NoError(t, err)
	})

	result, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, result, got)

	path := filepath.Join(t.TempDir(), "nightsync.prom")
	require.NoError(t, m.WriteTextfile(path))
}

func TestNewRequiresSourceAndRemote(t *testing.T) {
	_, err := nightsync.New(nightsync.WithSource(static()))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	h := newHarness(t)
	_, err = nightsync.New(nightsync.WithRemote(h.client))
	require.Error(t, err)

	s, err := nightsync.New(nightsync.WithSource(static()), nightsync.WithRemote(h.client))
	require.NoError(t, err)
	assert.Equal(t, goal, s.Goal())
}
