package core

import "time"

// JobState is the lifecycle state of a Job.
type JobState string

const (
	StateNew        JobState = "new"
	StatePending    JobState = "pending"
	StateRunning    JobState = "running"
	StateFinished   JobState = "finished"
	StateFailed     JobState = "failed"
	StateTerminated JobState = "terminated"
	StateIncomplete JobState = "incomplete"
	StateCanceled   JobState = "canceled"
)

// DefaultQueue is the queue name assigned when none is supplied.
const DefaultQueue = "default"

// Job is the primary entity: a durable record of a command invocation.
//
// Args is an opaque blob; the core never encodes, decodes or interprets
// it. Callers supply the bytes (for example a JSON array of strings), and
// Find/GetOrCreate compare them byte for byte.
type Job struct {
	ID       uint64   `gorm:"primaryKey;autoIncrement"`
	Command  string   `gorm:"index;size:255;not null"`
	Args     []byte   `gorm:"type:bytes"`
	State    JobState `gorm:"index;size:20;not null;default:'new'"`
	Queue    string   `gorm:"index;size:255;not null;default:'default'"`
	Priority int      `gorm:"index;not null;default:0"`

	CreatedAt    time.Time  `gorm:"index;autoCreateTime;not null"`
	ExecuteAfter *time.Time `gorm:"index"`
	StartedAt    *time.Time
	CheckedAt    *time.Time `gorm:"index"`
	ClosedAt     *time.Time `gorm:"index"`

	MaxRuntime time.Duration `gorm:"not null;default:0"`
	WorkerName *string       `gorm:"index;size:255"`

	Output      []byte `gorm:"type:bytes"`
	ErrorOutput string `gorm:"type:text"`
	ExitCode    *int

	IsRetryJob    bool    `gorm:"index;not null;default:false"`
	OriginalJobID *uint64 `gorm:"index"`
	MaxRetries    int     `gorm:"not null;default:0"`
}

// TableName pins the GORM table name regardless of struct name changes.
func (Job) TableName() string { return "jobs" }

// Dependency is a directed edge: Source must finish FINISHED before Dest
// may run. No self-loops; the transitive closure is never materialized.
type Dependency struct {
	SourceJobID uint64 `gorm:"primaryKey;column:source_job_id"`
	DestJobID   uint64 `gorm:"primaryKey;column:dest_job_id"`
}

func (Dependency) TableName() string { return "job_dependencies" }

// RelatedEntity associates a Job with an external business object. The
// (Class, IDJSON) pair is not unique across jobs.
type RelatedEntity struct {
	JobID   uint64 `gorm:"primaryKey;column:job_id"`
	Class   string `gorm:"primaryKey;size:255;column:related_class"`
	IDJSON  string `gorm:"primaryKey;column:related_id;type:text"`
}

func (RelatedEntity) TableName() string { return "job_related_entities" }
