package manager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/graph"
	"github.com/levuro/jobqueue/pkg/retry"
	"github.com/levuro/jobqueue/pkg/security"
	"github.com/levuro/jobqueue/pkg/statemachine"
)

// Manager is the orchestration core: submit, deduplicate, claim and
// close, including the recursive terminal-state cascade through the
// dependency graph and retry chain.
type Manager struct {
	store     core.Store
	graph     *graph.Graph
	scheduler retry.Scheduler
	listeners []core.Listener
	logger    *slog.Logger
}

// New builds a Manager over store.
func New(store core.Store, opts ...Option) *Manager {
	cfg := newConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Manager{
		store:     store,
		graph:     graph.New(store),
		scheduler: cfg.scheduler,
		listeners: cfg.listeners,
		logger:    cfg.logger,
	}
}

// Submit persists a new job in state PENDING together with its dependency
// edges, in one transaction. A job with dependencies is claimable only
// once every one of them is FINISHED.
func (m *Manager) Submit(ctx context.Context, command string, args []byte, opts ...SubmitOption) (*core.Job, error) {
	if err := security.ValidateCommand(command); err != nil {
		return nil, &core.InvalidArgumentError{Field: "command", Err: err}
	}

	cfg := newSubmitConfig()
	for _, opt := range opts {
		opt.applySubmit(cfg)
	}
	if err := security.ValidateQueueName(cfg.queue); err != nil {
		return nil, &core.InvalidArgumentError{Field: "queue", Err: err}
	}

	job := &core.Job{
		Command:      command,
		Args:         args,
		Queue:        cfg.queue,
		Priority:     cfg.priority,
		MaxRetries:   security.ClampRetries(cfg.maxRetries),
		ExecuteAfter: cfg.executeAfter,
		State:        core.StatePending,
	}

	err := m.store.WithinTransaction(ctx, func(tx core.Store) error {
		if err := tx.Insert(ctx, job); err != nil {
			return err
		}
		for _, depID := range cfg.dependencies {
			if err := tx.InsertDependency(ctx, core.Dependency{SourceJobID: depID, DestJobID: job.ID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Find returns the first job (id ASC) with byte-exact (command, args), or
// nil if none exists.
func (m *Manager) Find(ctx context.Context, command string, args []byte) (*core.Job, error) {
	return m.store.FindByCommandArgs(ctx, command, args)
}

// GetOrCreate returns the job for (command, args), creating it if absent.
// Exactly one concurrent caller wins the race and observes a freshly
// created job; all others observe the pre-existing (or concurrently
// winning) row. It works without a unique index: every caller
// speculatively inserts a NEW row, then re-queries for the lowest id
// matching (command, args); the lowest id is the winner by construction,
// since ids are assigned monotonically on insert. DependsOn has no effect
// here: GetOrCreate records no dependency edges.
func (m *Manager) GetOrCreate(ctx context.Context, command string, args []byte, opts ...SubmitOption) (*core.Job, error) {
	if err := security.ValidateCommand(command); err != nil {
		return nil, &core.InvalidArgumentError{Field: "command", Err: err}
	}

	cfg := newSubmitConfig()
	for _, opt := range opts {
		opt.applySubmit(cfg)
	}
	if err := security.ValidateQueueName(cfg.queue); err != nil {
		return nil, &core.InvalidArgumentError{Field: "queue", Err: err}
	}

	candidate := &core.Job{
		Command:      command,
		Args:         args,
		Queue:        cfg.queue,
		Priority:     cfg.priority,
		MaxRetries:   security.ClampRetries(cfg.maxRetries),
		ExecuteAfter: cfg.executeAfter,
		State:        core.StateNew,
	}
	if err := m.store.Insert(ctx, candidate); err != nil {
		return nil, err
	}

	winner, err := m.store.FindByCommandArgs(ctx, command, args)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, &core.ConflictError{Command: command, Err: errors.New("no row found immediately after insert")}
	}

	if winner.ID == candidate.ID {
		winner.State = core.StatePending
		if err := m.store.Update(ctx, winner); err != nil {
			return nil, err
		}
		return winner, nil
	}

	if err := m.store.DeleteByID(ctx, candidate.ID); err != nil {
		return nil, err
	}
	return winner, nil
}

// FindPending selects the single next PENDING candidate ordered by
// (priority ASC, id ASC) under the given exclusion/restriction sets,
// without attempting to claim it.
func (m *Manager) FindPending(ctx context.Context, excludedIDs []uint64, excludedQueues, restrictedQueues []string) (*core.Job, error) {
	return m.store.FindPending(ctx, excludedIDs, excludedQueues, restrictedQueues)
}

// ClaimNext finds and atomically claims the next eligible job for
// workerName. excludedIDs grows across the call as candidates are
// skipped (either not startable, or lost the atomic claim race); the
// caller is responsible for resetting it between unrelated attempts.
func (m *Manager) ClaimNext(ctx context.Context, workerName string, excludedIDs *[]uint64, excludedQueues, restrictedQueues []string) (*core.Job, error) {
	for {
		job, err := m.store.FindPending(ctx, *excludedIDs, excludedQueues, restrictedQueues)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}

		incoming, err := m.graph.Incoming(ctx, job)
		if err != nil {
			return nil, err
		}

		if statemachine.IsStartable(job, incoming) {
			rows, err := m.store.ClaimAtomic(ctx, job.ID, workerName)
			if err != nil {
				return nil, err
			}
			if rows == 1 {
				now := time.Now()
				worker := workerName
				job.WorkerName = &worker
				job.StartedAt = &now
				job.CheckedAt = &now
				job.State = core.StateRunning
				if err := m.store.Update(ctx, job); err != nil {
					return nil, err
				}
				return job, nil
			}
		}

		*excludedIDs = append(*excludedIDs, job.ID)
	}
}

// Close runs the terminal-state cascade for job, inside one transaction.
// A call-local visited set (keyed by job id) guards against infinite
// recursion through cycles or diamonds in the dependency graph; once a
// job is visited in this call it is never revisited.
func (m *Manager) Close(ctx context.Context, job *core.Job, finalState core.JobState) error {
	return m.store.WithinTransaction(ctx, func(tx core.Store) error {
		visited := make(map[uint64]bool)
		return m.closeByID(ctx, tx, visited, job.ID, finalState)
	})
}

func (m *Manager) closeByID(ctx context.Context, tx core.Store, visited map[uint64]bool, jobID uint64, finalState core.JobState) error {
	if visited[jobID] {
		return nil
	}
	visited[jobID] = true

	job, err := tx.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return &core.NotFoundError{JobID: jobID}
	}

	if statemachine.IsFinal(job.State) {
		return nil
	}

	if err := statemachine.ValidateCloseState(job, finalState); err != nil {
		return err
	}

	retries, err := tx.RetryJobsOf(ctx, job.ID)
	if err != nil {
		return err
	}

	if job.IsRetryJob || len(retries) == 0 {
		ev := &core.StateChangeEvent{Job: job, NewState: finalState}
		finalState = core.NewDispatcher(m.listeners...).Dispatch(ev)
	}

	switch finalState {
	case core.StateCanceled:
		return m.closeCanceled(ctx, tx, visited, job)
	case core.StateFailed, core.StateTerminated, core.StateIncomplete:
		return m.closeUnsuccessful(ctx, tx, visited, job, finalState, len(retries))
	case core.StateFinished:
		return m.closeFinished(ctx, tx, job)
	default:
		return &core.InvalidStateError{
			JobID:        job.ID,
			CurrentState: job.State,
			FinalState:   finalState,
			Reason:       "not an allowed close state",
		}
	}
}

func (m *Manager) closeCanceled(ctx context.Context, tx core.Store, visited map[uint64]bool, job *core.Job) error {
	now := time.Now()
	job.State = core.StateCanceled
	job.ClosedAt = &now
	if err := tx.Update(ctx, job); err != nil {
		return err
	}

	if job.IsRetryJob {
		return m.closeByID(ctx, tx, visited, *job.OriginalJobID, core.StateCanceled)
	}

	dependents, err := tx.OutgoingOf(ctx, job.ID)
	if err != nil {
		return err
	}
	for _, d := range dependents {
		if err := m.closeByID(ctx, tx, visited, d.ID, core.StateCanceled); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) closeUnsuccessful(ctx context.Context, tx core.Store, visited map[uint64]bool, job *core.Job, finalState core.JobState, retryCount int) error {
	if job.IsRetryJob {
		now := time.Now()
		job.State = finalState
		job.ClosedAt = &now
		if err := tx.Update(ctx, job); err != nil {
			return err
		}
		return m.closeByID(ctx, tx, visited, *job.OriginalJobID, finalState)
	}

	if statemachine.IsRetryAllowed(job, retryCount) {
		retryJob := &core.Job{
			Command:       job.Command,
			Args:          job.Args,
			Queue:         job.Queue,
			Priority:      job.Priority,
			MaxRuntime:    job.MaxRuntime,
			MaxRetries:    job.MaxRetries,
			IsRetryJob:    true,
			OriginalJobID: &job.ID,
			State:         core.StatePending,
		}
		when := m.scheduler.ScheduleNextRetry(retryCount)
		retryJob.ExecuteAfter = &when
		return tx.Insert(ctx, retryJob)
	}

	now := time.Now()
	job.State = finalState
	job.ClosedAt = &now
	if err := tx.Update(ctx, job); err != nil {
		return err
	}

	dependents, err := tx.OutgoingOf(ctx, job.ID)
	if err != nil {
		return err
	}
	for _, d := range dependents {
		if d.State == core.StatePending || d.State == core.StateNew {
			if err := m.closeByID(ctx, tx, visited, d.ID, core.StateCanceled); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) closeFinished(ctx context.Context, tx core.Store, job *core.Job) error {
	now := time.Now()
	if job.IsRetryJob {
		orig, err := tx.GetByID(ctx, *job.OriginalJobID)
		if err != nil {
			return err
		}
		if orig != nil {
			orig.State = core.StateFinished
			orig.ClosedAt = &now
			if err := tx.Update(ctx, orig); err != nil {
				return err
			}
		}
	}
	job.State = core.StateFinished
	job.ClosedAt = &now
	return tx.Update(ctx, job)
}

// Incoming returns the jobs that must finish before job may run.
func (m *Manager) Incoming(ctx context.Context, job *core.Job) ([]core.Job, error) {
	return m.graph.Incoming(ctx, job)
}

// Outgoing returns the jobs waiting on job to finish.
func (m *Manager) Outgoing(ctx context.Context, job *core.Job) ([]core.Job, error) {
	return m.graph.Outgoing(ctx, job)
}

// FindForRelatedEntity returns the first job (id ASC) with the given
// command associated with re, optionally restricted to states.
func (m *Manager) FindForRelatedEntity(ctx context.Context, command string, re core.RelatedEntity, states []core.JobState) (*core.Job, error) {
	if err := security.ValidateRelatedID(re.IDJSON); err != nil {
		return nil, &core.InvalidArgumentError{Field: "relatedEntity.id", Err: err}
	}
	return m.store.FindForRelatedEntity(ctx, command, re, states)
}

// FindAllForRelatedEntity returns every job associated with re.
func (m *Manager) FindAllForRelatedEntity(ctx context.Context, re core.RelatedEntity) ([]core.Job, error) {
	if err := security.ValidateRelatedID(re.IDJSON); err != nil {
		return nil, &core.InvalidArgumentError{Field: "relatedEntity.id", Err: err}
	}
	return m.store.FindAllForRelatedEntity(ctx, re)
}

// FindLastErrored returns up to n of the most recently closed FAILED,
// TERMINATED or INCOMPLETE jobs.
func (m *Manager) FindLastErrored(ctx context.Context, n int) ([]core.Job, error) {
	if n <= 0 {
		n = 10
	}
	return m.store.FindLastErrored(ctx, n)
}

// ListQueues returns the distinct set of queue names in use.
func (m *Manager) ListQueues(ctx context.Context) ([]string, error) {
	return m.store.ListQueues(ctx)
}

// AvailableCount returns the count of PENDING, unclaimed,
// immediately-runnable jobs in queue.
func (m *Manager) AvailableCount(ctx context.Context, queue string) (int64, error) {
	return m.store.AvailableCount(ctx, queue)
}
