// Package jobqueue provides a durable, relational-database-backed job
// queue: a dependency-DAG-aware state machine, atomic worker claiming
// under contention, retry scheduling, and periodic cleanup. This is the
// package users should import; it re-exports the public types of the
// internal pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	store := jobqueue.NewGormStore(db)
//	store.Migrate(context.Background())
//	mgr := jobqueue.New(store)
//
//	job, _ := mgr.Submit(ctx, "send-email", []byte(`"user@example.com"`))
//
//	var excluded []uint64
//	claimed, _ := mgr.ClaimNext(ctx, "worker-1", &excluded, nil, nil)
//	_ = mgr.Close(ctx, claimed, jobqueue.StateFinished)
package jobqueue

import (
	"time"

	"gorm.io/gorm"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/graph"
	"github.com/levuro/jobqueue/pkg/manager"
	"github.com/levuro/jobqueue/pkg/retry"
	"github.com/levuro/jobqueue/pkg/security"
	"github.com/levuro/jobqueue/pkg/statemachine"
	"github.com/levuro/jobqueue/pkg/storage"
)

// Type aliases for a clean top-level API surface.
type (
	// Job is a durable record of a command invocation.
	Job = core.Job

	// JobState is the lifecycle state of a Job.
	JobState = core.JobState

	// Dependency is a directed edge in the job DAG.
	Dependency = core.Dependency

	// RelatedEntity associates a Job with an external business object.
	RelatedEntity = core.RelatedEntity

	// Store persists jobs, dependencies and related entities.
	Store = core.Store

	// Listener observes job state transitions.
	Listener = core.Listener

	// ListenerFunc adapts a function to Listener.
	ListenerFunc = core.ListenerFunc

	// StateChangeEvent is dispatched to Listeners for jobs closed by Close.
	StateChangeEvent = core.StateChangeEvent

	// Manager orchestrates submission, claiming and closing of jobs.
	Manager = manager.Manager

	// Option configures a Manager.
	Option = manager.Option

	// SubmitOption configures a single Submit/GetOrCreate call.
	SubmitOption = manager.SubmitOption

	// Scheduler computes the execute-after time of a retry job.
	Scheduler = retry.Scheduler

	// ExponentialScheduler is the default Scheduler implementation.
	ExponentialScheduler = retry.ExponentialScheduler

	// GormStore implements Store over *gorm.DB.
	GormStore = storage.GormStore

	// PoolConfig tunes the underlying *sql.DB connection pool.
	PoolConfig = storage.PoolConfig

	// Graph resolves a Job's incoming/outgoing dependency edges.
	Graph = graph.Graph

	// NotFoundError indicates a lookup found no matching row.
	NotFoundError = core.NotFoundError

	// InvalidArgumentError indicates a caller-supplied value was rejected.
	InvalidArgumentError = core.InvalidArgumentError

	// InvalidStateError indicates a close/transition was attempted from
	// a state that does not permit it.
	InvalidStateError = core.InvalidStateError

	// ConflictError indicates GetOrCreate found no matching row right
	// after inserting its own.
	ConflictError = core.ConflictError

	// StorageError wraps an error from the Store, including any error
	// returned inside a rolled-back transaction.
	StorageError = core.StorageError

	// SerializationError indicates an opaque column could not be decoded.
	SerializationError = core.SerializationError
)

// Job states.
const (
	StateNew        = core.StateNew
	StatePending    = core.StatePending
	StateRunning    = core.StateRunning
	StateFinished   = core.StateFinished
	StateFailed     = core.StateFailed
	StateTerminated = core.StateTerminated
	StateIncomplete = core.StateIncomplete
	StateCanceled   = core.StateCanceled
)

// DefaultQueue is the queue name assigned when none is supplied.
const DefaultQueue = core.DefaultQueue

// Sentinel validation errors.
var (
	ErrEmptyCommand     = core.ErrEmptyCommand
	ErrInvalidQueueName = core.ErrInvalidQueueName
	ErrQueueNameTooLong = core.ErrQueueNameTooLong
	ErrInvalidRelatedID = core.ErrInvalidRelatedID
)

// Security limits enforced at the Manager boundary.
const (
	MaxCommandLength      = security.MaxCommandLength
	MaxJobArgsSize        = security.MaxJobArgsSize
	MaxRetries            = security.MaxRetries
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxQueueNameLength    = security.MaxQueueNameLength
)

// New creates a Manager over the given Store.
func New(store Store, opts ...Option) *Manager {
	return manager.New(store, opts...)
}

// NewGormStore creates a GORM-backed Store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewGraph creates a Graph over the given Store.
func NewGraph(store Store) *Graph {
	return graph.New(store)
}

// NewExponentialScheduler creates a Scheduler with exponential backoff.
func NewExponentialScheduler(baseSeconds int) *ExponentialScheduler {
	return retry.NewExponentialScheduler(baseSeconds)
}

// IsFinal reports whether s is a terminal state.
func IsFinal(s JobState) bool {
	return statemachine.IsFinal(s)
}

// IsClosedNonSuccessful reports whether s is a terminal state other than
// FINISHED.
func IsClosedNonSuccessful(s JobState) bool {
	return statemachine.IsClosedNonSuccessful(s)
}

// Manager construction options.

// WithScheduler overrides the Manager's retry scheduler.
func WithScheduler(s Scheduler) Option {
	return manager.WithScheduler(s)
}

// WithListener registers a Listener on the Manager.
func WithListener(l Listener) Option {
	return manager.WithListener(l)
}

// Submit/GetOrCreate options.

// InQueue assigns a job to a named queue.
func InQueue(name string) SubmitOption {
	return manager.InQueue(name)
}

// WithPriority sets a job's scheduling priority (lower runs first).
func WithPriority(p int) SubmitOption {
	return manager.WithPriority(p)
}

// WithMaxRetries sets a job's maximum retry count.
func WithMaxRetries(n int) SubmitOption {
	return manager.WithMaxRetries(n)
}

// DependsOn makes a job wait on the given prerequisite job ids.
func DependsOn(jobIDs ...uint64) SubmitOption {
	return manager.DependsOn(jobIDs...)
}

// ExecuteAfter delays a job until the given time.
func ExecuteAfter(t time.Time) SubmitOption {
	return manager.ExecuteAfter(t)
}

// ValidateQueueName validates a queue name.
func ValidateQueueName(name string) error {
	return security.ValidateQueueName(name)
}

// ValidateCommand validates a job command string.
func ValidateCommand(command string) error {
	return security.ValidateCommand(command)
}

// SanitizeErrorMessage truncates and sanitizes an error message for
// storage.
func SanitizeErrorMessage(msg string) string {
	return security.SanitizeErrorMessage(msg)
}

// ClampRetries bounds a requested retry count to the allowed range.
func ClampRetries(n int) int {
	return security.ClampRetries(n)
}
