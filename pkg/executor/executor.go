// Package executor applies a reconciliation plan against the remote service.
//
// Phases run strictly in order: deletes, then creates, then updates. Each
// phase finishes before the next starts. Within a phase, operations for the
// same date run one after another; different dates may run concurrently on
// a bounded worker pool. A failed operation is recorded and execution moves
// on. Cancellation stops new operations from starting; anything already
// applied stays applied.
package executor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/logging"
	"github.com/agentstation/nightsync/pkg/planner"
	"github.com/agentstation/nightsync/pkg/records"
)

// Writer performs single remote mutations. Implementations own retries.
type Writer interface {
	Create(ctx context.Context, v records.Violation) (records.Datapoint, error)
	Update(ctx context.Context, id string, v records.Violation) (records.Datapoint, error)
	Delete(ctx context.Context, id string) error
}

// Observer is notified after every attempted operation.
type Observer interface {
	ObserveOperation(kind planner.ChangeType, elapsed time.Duration, err error)
}

// Executor applies plans.
type Executor struct {
	writer      Writer
	concurrency int
	observer    Observer
	logger      *zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets how many dates may be mutated at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		e.concurrency = n
	}
}

// WithObserver registers an operation observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(l *zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor writing through w.
func New(w Writer, opts ...Option) *Executor {
	e := &Executor{writer: w, concurrency: constants.DefaultConcurrency}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	if e.concurrency > constants.MaxConcurrency {
		e.concurrency = constants.MaxConcurrency
	}
	return e
}

type op struct {
	kind planner.ChangeType
	date records.Date
	id   string
	run  func(ctx context.Context) error
}

// Apply executes the plan and returns a report. It never returns early on
// operation failure.
func (e *Executor) Apply(ctx context.Context, plan *planner.Plan) *Report {
	start := time.Now()
	report := &Report{Failures: []Failure{}}
	if plan == nil {
		return report
	}

	if e.logger != nil && logging.FromContext(ctx) == logging.Default() {
		ctx = logging.WithLogger(ctx, e.logger)
	}

	phases := [][]op{e.deleteOps(plan), e.createOps(plan), e.updateOps(plan)}
	for _, ops := range phases {
		e.runPhase(ctx, ops, report)
	}

	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].Date.Before(report.Failures[j].Date)
	})
	report.Duration = time.Since(start)
	report.Incomplete = ctx.Err() != nil && (report.Skipped > 0 || report.Failed > 0)
	return report
}

func (e *Executor) deleteOps(plan *planner.Plan) []op {
	ops := make([]op, 0, len(plan.Deletes))
	for _, d := range plan.Deletes {
		id := d.ID
		ops = append(ops, op{
			kind: planner.ChangeTypeDelete,
			date: d.Date,
			id:   id,
			run: func(ctx context.Context) error {
				return e.writer.Delete(ctx, id)
			},
		})
	}
	return ops
}

func (e *Executor) createOps(plan *planner.Plan) []op {
	ops := make([]op, 0, len(plan.Creates))
	for _, c := range plan.Creates {
		rec := c.Record
		ops = append(ops, op{
			kind: planner.ChangeTypeCreate,
			date: rec.Date,
			run: func(ctx context.Context) error {
				_, err := e.writer.Create(ctx, rec)
				return err
			},
		})
	}
	return ops
}

func (e *Executor) updateOps(plan *planner.Plan) []op {
	ops := make([]op, 0, len(plan.Updates))
	for _, u := range plan.Updates {
		id, rec := u.ID, u.Want
		ops = append(ops, op{
			kind: planner.ChangeTypeUpdate,
			date: rec.Date,
			id:   id,
			run: func(ctx context.Context) error {
				_, err := e.writer.Update(ctx, id, rec)
				return err
			},
		})
	}
	return ops
}

// runPhase runs one phase to completion. Operations sharing a date form a
// group that runs sequentially on a single worker.
func (e *Executor) runPhase(ctx context.Context, ops []op, report *Report) {
	if len(ops) == 0 {
		return
	}

	var order []records.Date
	groups := make(map[records.Date][]op)
	for _, o := range ops {
		if _, ok := groups[o.date]; !ok {
			order = append(order, o.date)
		}
		groups[o.date] = append(groups[o.date], o)
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(e.concurrency)
	for _, date := range order {
		group := groups[date]
		p.Go(func() {
			for _, o := range group {
				if ctx.Err() != nil {
					mu.Lock()
					report.Skipped++
					mu.Unlock()
					continue
				}

				opCtx := logging.WithOperation(ctx, string(o.kind))
				began := time.Now()
				err := o.run(opCtx)
				elapsed := time.Since(began)
				if e.observer != nil {
					e.observer.ObserveOperation(o.kind, elapsed, err)
				}

				mu.Lock()
				report.record(o, err)
				mu.Unlock()

				logger := logging.FromContext(opCtx)
				event := logger.Debug()
				if err != nil {
					event = logger.Warn().Err(err)
				}
				event.Str("date", o.date.String()).
					Str("id", o.id).
					Dur("elapsed", elapsed).
					Msg("Applied operation")
			}
		})
	}
	p.Wait()
}

func (r *Report) record(o op, err error) {
	if err != nil {
		var werr *errors.RemoteWriteError
		if !errors.As(err, &werr) {
			werr = errors.NewRemoteWriteError(string(o.kind), o.date.String(), o.id, err)
		}
		r.Failed++
		r.Failures = append(r.Failures, Failure{
			Kind:    o.kind,
			Date:    o.date,
			ID:      o.id,
			Message: werr.Error(),
			Err:     werr,
		})
		return
	}
	switch o.kind {
	case planner.ChangeTypeCreate:
		r.Created++
	case planner.ChangeTypeUpdate:
		r.Updated++
	case planner.ChangeTypeDelete:
		r.Deleted++
	}
}
