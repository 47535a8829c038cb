package core

import (
	"context"
	"time"
)

// Store provides typed, transactional access to the jobs,
// job_dependencies and job_related_entities tables.
type Store interface {
	Migrate(ctx context.Context) error

	// WithinTransaction runs fn against a Store bound to one database
	// transaction. On any error returned by fn the transaction rolls
	// back and no state is observable; otherwise it commits. Every
	// multi-row write during a Manager.Close cascade runs inside a
	// single WithinTransaction call, per spec §4.1.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error

	Insert(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	DeleteByID(ctx context.Context, jobID uint64) error
	GetByID(ctx context.Context, jobID uint64) (*Job, error)

	// ClaimAtomic executes UPDATE jobs SET worker_name=? WHERE id=? AND
	// worker_name IS NULL, returning rows-affected (0 or 1).
	ClaimAtomic(ctx context.Context, jobID uint64, workerName string) (int64, error)

	// FindByCommandArgs returns the first job (id ASC) with byte-exact
	// (command, args), or nil.
	FindByCommandArgs(ctx context.Context, command string, args []byte) (*Job, error)

	// FindPending selects the single next PENDING candidate ordered by
	// (priority ASC, id ASC) under the given exclusion/restriction sets.
	FindPending(ctx context.Context, excludedIDs []uint64, excludedQueues, restrictedQueues []string) (*Job, error)

	InsertDependency(ctx context.Context, dep Dependency) error
	IncomingOf(ctx context.Context, jobID uint64) ([]Job, error)
	OutgoingOf(ctx context.Context, jobID uint64) ([]Job, error)

	InsertRelatedEntity(ctx context.Context, re RelatedEntity) error
	FindForRelatedEntity(ctx context.Context, command string, re RelatedEntity, states []JobState) (*Job, error)
	FindAllForRelatedEntity(ctx context.Context, re RelatedEntity) ([]Job, error)

	FindLastErrored(ctx context.Context, limit int) ([]Job, error)
	ListQueues(ctx context.Context) ([]string, error)
	AvailableCount(ctx context.Context, queue string) (int64, error)

	// RetryJobsOf returns the retry children of a job (always empty for a
	// retry job, since retry chains do not nest).
	RetryJobsOf(ctx context.Context, jobID uint64) ([]Job, error)

	// StaleRunning returns one RUNNING job whose CheckedAt predates the
	// cutoff, excluding the given ids, or nil when none remain.
	StaleRunning(ctx context.Context, cutoff time.Time, excludedIDs []uint64) (*Job, error)

	// The three retention passes described in spec §4.6, each returning
	// up to limit non-retry jobs.
	FinishedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Job, error)
	ClosedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Job, error)
	CanceledCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Job, error)

	// DeleteDependenciesReferencing removes every job_dependencies row
	// where jobID appears as either source or dest.
	DeleteDependenciesReferencing(ctx context.Context, jobID uint64) error
}
