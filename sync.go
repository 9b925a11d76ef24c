package nightsync

import (
	"context"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/nightsync/pkg/dedupe"
	"github.com/agentstation/nightsync/pkg/executor"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/planner"
	"github.com/agentstation/nightsync/pkg/records"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Sync loads the local dataset and the remote goal, plans the difference
// and applies it. The returned result is non-nil whenever the options were
// valid, including on failure.
func (s *syncer) Sync(ctx context.Context, opts ...pkgsync.Option) (*pkgsync.Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Parse and validate options before any I/O
	options := pkgsync.Defaults().Apply(opts...)
	if err := options.Validate(s.cfg.goal); err != nil {
		return nil, err
	}

	// Step 2: Tag the run
	start := s.cfg.clock()
	if s.cfg.logger != nil && logging.FromContext(ctx) == logging.Default() {
		ctx = logging.WithLogger(ctx, s.cfg.logger)
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithGoal(ctx, s.cfg.goal)
	logger := logging.FromContext(ctx)

	// Step 3: Setup context with timeout
	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	machine := pkgsync.NewMachine()
	result := &pkgsync.Result{
		RunID:   runID,
		Goal:    s.cfg.goal,
		DryRun:  options.DryRun,
		Nuclear: options.Nuclear,
	}
	finish := func(err error) (*pkgsync.Result, error) {
		elapsed := s.cfg.clock().Sub(start)
		result.State = machine.Current()
		result.Transitions = machine.Path()
		result.Duration = elapsed
		s.cfg.metrics.ObserveRun(s.cfg.clock(), elapsed, err == nil)
		s.hooks.trigger(result, err)
		return result, err
	}

	logger.Info().
		Str("source", s.cfg.source.Name()).
		Bool("dry_run", options.DryRun).
		Bool("nuclear", options.Nuclear).
		Msg("Sync started")

	// Step 4: Load local and fetch remote. Neither side mutates anything,
	// and the first failure cancels the other.
	machine.To(pkgsync.StateLoadingLocal)
	machine.To(pkgsync.StateFetchingRemote)

	var (
		local  *records.Dataset
		remote []records.Datapoint
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		ds, err := s.cfg.source.Load(logging.WithSource(ctx, s.cfg.source.Name()))
		if err != nil {
			return err
		}
		local = ds
		return nil
	})
	p.Go(func(ctx context.Context) error {
		points, err := s.cfg.remote.ListAll(ctx)
		if err != nil {
			return err
		}
		remote = points
		return nil
	})
	if err := p.Wait(); err != nil {
		machine.To(pkgsync.StateFailed)
		logger.Error().Err(err).Msg("Sync aborted before any remote mutation")
		return finish(err)
	}

	result.LocalRecords = len(local.Records)
	result.LocalSkipped = len(local.Skipped)
	result.RemotePoints = len(remote)

	// Step 5: Collapse remote duplicates
	machine.To(pkgsync.StateCleaning)
	resolution := dedupe.Resolve(remote)
	result.DuplicateDates = resolution.Groups
	if resolution.Groups > 0 || len(resolution.Undated) > 0 {
		logger.Warn().
			Int("duplicate_dates", resolution.Groups).
			Int("losers", len(resolution.Losers)).
			Int("undated", len(resolution.Undated)).
			Msg("Remote duplicates found")
	}
	s.cfg.metrics.ObserveDataset(result.LocalRecords, result.LocalSkipped, result.RemotePoints, result.DuplicateDates)

	// Step 6: Plan
	machine.To(pkgsync.StatePlanning)
	var plan *planner.Plan
	if options.Nuclear {
		plan = planner.Nuclear(local.Records, remote)
	} else {
		plan = planner.Diff(local.Records, resolution)
	}
	result.Plan = plan
	s.cfg.metrics.ObservePlan(plan)

	c := plan.Counts()
	logger.Info().
		Int("local", result.LocalRecords).
		Int("remote", result.RemotePoints).
		Int("creates", c.Creates).
		Int("updates", c.Updates).
		Int("deletes", c.Deletes).
		Msg("Plan computed")

	if options.DryRun {
		machine.To(pkgsync.StateReported)
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - no changes applied")
		return finish(nil)
	}

	// Step 7: Execute
	machine.To(pkgsync.StateExecuting)
	execOpts := []executor.Option{
		executor.WithConcurrency(options.Concurrency),
		executor.WithLogger(logger),
	}
	if s.cfg.metrics != nil {
		execOpts = append(execOpts, executor.WithObserver(s.cfg.metrics))
	}
	result.Report = executor.New(s.cfg.remote, execOpts...).Apply(ctx, plan)
	machine.To(pkgsync.StateReported)

	err := result.Err()
	event := logger.Info()
	if err != nil {
		event = logger.Warn().Int("failed", result.Report.Failed).Int("skipped", result.Report.Skipped)
	}
	event.
		Int("created", result.Report.Created).
		Int("updated", result.Report.Updated).
		Int("deleted", result.Report.Deleted).
		Msg("Sync completed")

	return finish(err)
}
