package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/manager"
	"github.com/levuro/jobqueue/pkg/statemachine"
)

// Report summarizes one Run invocation.
type Report struct {
	RunID       string
	StaleClosed int
	Deleted     int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Cleanup runs the stale-running sweep and retention-based deletion
// passes described in spec.md §4.6.
type Cleanup struct {
	store core.Store
	mgr   *manager.Manager
	cfg   *config
}

// New builds a Cleanup over store, using mgr to close stale and
// dependency-blocking jobs.
func New(store core.Store, mgr *manager.Manager, opts ...Option) *Cleanup {
	cfg := newConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Cleanup{store: store, mgr: mgr, cfg: cfg}
}

// Run executes one full cleanup pass: stale-running sweep, then the
// three ordered retention-deletion passes, stopping once perCall jobs
// have been deleted. Each invocation is stamped with a correlation id so
// concurrent cleanup processes are distinguishable in logs.
func (c *Cleanup) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), StartedAt: time.Now()}
	logger := c.cfg.logger.With("run_id", report.RunID)

	staleClosed, err := c.sweepStale(ctx, logger)
	report.StaleClosed = staleClosed
	if err != nil {
		report.FinishedAt = time.Now()
		return report, err
	}

	deleted, err := c.pruneRetention(ctx, logger)
	report.Deleted = deleted
	report.FinishedAt = time.Now()
	return report, err
}

// sweepStale repeatedly selects one RUNNING job whose last heartbeat
// predates staleAfter, closing each as INCOMPLETE. Each candidate's id is
// appended to an exclusion list so the same dead row is never re-selected
// within one sweep; the in-process view is dropped after each iteration,
// per spec.md §4.6 ("clearing the in-process view between iterations is
// required to avoid stale reads").
func (c *Cleanup) sweepStale(ctx context.Context, logger *slog.Logger) (int, error) {
	cutoff := time.Now().Add(-c.cfg.staleAfter)
	var excluded []uint64
	closed := 0

	for {
		job, err := c.store.StaleRunning(ctx, cutoff, excluded)
		if err != nil {
			return closed, err
		}
		if job == nil {
			return closed, nil
		}
		excluded = append(excluded, job.ID)

		workerName := "unknown"
		if job.WorkerName != nil {
			workerName = *job.WorkerName
		}
		var checkedAt any
		if job.CheckedAt != nil {
			checkedAt = *job.CheckedAt
		}
		logger.Warn("closing stale running job",
			"job_id", job.ID, "worker_name", workerName, "checked_at", checkedAt)

		if err := c.mgr.Close(ctx, job, core.StateIncomplete); err != nil {
			var storageErr *core.StorageError
			if errors.As(err, &storageErr) {
				logger.Error("skipping stale job after storage error", "job_id", job.ID, "error", err)
				continue
			}
			return closed, err
		}
		closed++
	}
}

type retentionPass struct {
	name  string
	fetch func(ctx context.Context, cutoff time.Time, limit int) ([]core.Job, error)
	until time.Duration
}

// pruneRetention runs the three ordered, batched retention passes,
// stopping once perCall total deletions have happened across all passes.
func (c *Cleanup) pruneRetention(ctx context.Context, logger *slog.Logger) (int, error) {
	passes := []retentionPass{
		{name: "finished", fetch: c.store.FinishedOlderThan, until: c.cfg.maxRetentionSucceeded},
		{name: "closed", fetch: c.store.ClosedOlderThan, until: c.cfg.maxRetention},
		{name: "canceled", fetch: c.store.CanceledCreatedBefore, until: c.cfg.maxRetention},
	}

	total := 0
	for _, pass := range passes {
		cutoff := time.Now().Add(-pass.until)
		for total < c.cfg.perCall {
			limit := batchSize
			if remaining := c.cfg.perCall - total; remaining < limit {
				limit = remaining
			}
			batch, err := pass.fetch(ctx, cutoff, limit)
			if err != nil {
				return total, err
			}
			if len(batch) == 0 {
				break
			}
			for i := range batch {
				job := batch[i]
				if err := c.deleteJob(ctx, &job); err != nil {
					logger.Error("failed to delete job", "job_id", job.ID, "pass", pass.name, "error", err)
					continue
				}
				total++
				if total >= c.cfg.perCall {
					break
				}
			}
		}
	}
	return total, nil
}

// deleteJob removes job, first resolving any surviving incoming
// dependency edges: a predecessor still in a non-final state is closed
// with FAILED (if job was RUNNING) or CANCELED (otherwise). Edges in both
// directions are then removed before the row. Runs in one transaction, per
// spec.md §4.6.
func (c *Cleanup) deleteJob(ctx context.Context, job *core.Job) error {
	return c.store.WithinTransaction(ctx, func(tx core.Store) error {
		incoming, err := tx.IncomingOf(ctx, job.ID)
		if err != nil {
			return err
		}

		resolveState := core.StateCanceled
		if job.State == core.StateRunning {
			resolveState = core.StateFailed
		}

		txMgr := manager.New(tx, manager.WithScheduler(c.cfg.scheduler), manager.WithLogger(c.cfg.logger))
		for i := range incoming {
			s := incoming[i]
			if statemachine.IsFinal(s.State) {
				continue
			}
			if err := txMgr.Close(ctx, &s, resolveState); err != nil {
				return err
			}
		}

		if err := tx.DeleteDependenciesReferencing(ctx, job.ID); err != nil {
			return err
		}
		return tx.DeleteByID(ctx, job.ID)
	})
}
