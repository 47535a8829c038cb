package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/levuro/jobqueue/pkg/core"
)

// GormStore implements core.Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed Store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the jobs, job_dependencies and job_related_entities tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{}, &core.Dependency{}, &core.RelatedEntity{})
}

// WithinTransaction runs fn against a Store bound to one transaction.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx core.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	if err != nil {
		return &core.StorageError{Op: "WithinTransaction", Err: err}
	}
	return nil
}

// Insert assigns defaults and creates the row. job.ID is populated by GORM.
func (s *GormStore) Insert(ctx context.Context, job *core.Job) error {
	if job.Queue == "" {
		job.Queue = core.DefaultQueue
	}
	if job.State == "" {
		job.State = core.StateNew
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return &core.StorageError{Op: "Insert", Err: err}
	}
	return nil
}

// Update persists all fields of job.
func (s *GormStore) Update(ctx context.Context, job *core.Job) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return &core.StorageError{Op: "Update", Err: err}
	}
	return nil
}

// DeleteByID removes the job row. Callers must first remove any
// referencing job_dependencies rows via DeleteDependenciesReferencing.
func (s *GormStore) DeleteByID(ctx context.Context, jobID uint64) error {
	if err := s.db.WithContext(ctx).Delete(&core.Job{}, jobID).Error; err != nil {
		return &core.StorageError{Op: "DeleteByID", Err: err}
	}
	return nil
}

// GetByID retrieves a job by id, or (nil, nil) if it does not exist.
func (s *GormStore) GetByID(ctx context.Context, jobID uint64) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "GetByID", Err: err}
	}
	return &job, nil
}

// ClaimAtomic executes the single conditional UPDATE that gives a worker
// exclusive execution rights on a job, returning rows-affected (0 or 1).
func (s *GormStore) ClaimAtomic(ctx context.Context, jobID uint64, workerName string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND worker_name IS NULL", jobID).
		Update("worker_name", workerName)
	if result.Error != nil {
		return 0, &core.StorageError{Op: "ClaimAtomic", Err: result.Error}
	}
	return result.RowsAffected, nil
}

// FindByCommandArgs returns the first job (id ASC) with byte-exact
// (command, args), or nil.
func (s *GormStore) FindByCommandArgs(ctx context.Context, command string, args []byte) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("command = ? AND args = ?", command, args).
		Order("id ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "FindByCommandArgs", Err: err}
	}
	return &job, nil
}

// FindPending selects the single next PENDING candidate ordered by
// (priority ASC, id ASC) under the given exclusion/restriction sets.
func (s *GormStore) FindPending(ctx context.Context, excludedIDs []uint64, excludedQueues, restrictedQueues []string) (*core.Job, error) {
	q := s.db.WithContext(ctx).
		Where("worker_name IS NULL").
		Where("state = ?", core.StatePending).
		Where("(execute_after IS NULL OR execute_after < ?)", time.Now())

	if len(excludedIDs) > 0 {
		q = q.Where("id NOT IN ?", excludedIDs)
	}
	if len(excludedQueues) > 0 {
		q = q.Where("queue NOT IN ?", excludedQueues)
	}
	if len(restrictedQueues) > 0 {
		q = q.Where("queue IN ?", restrictedQueues)
	}

	var job core.Job
	err := q.Order("priority ASC, id ASC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "FindPending", Err: err}
	}
	return &job, nil
}

// InsertDependency creates a dependency edge.
func (s *GormStore) InsertDependency(ctx context.Context, dep core.Dependency) error {
	if err := s.db.WithContext(ctx).Create(&dep).Error; err != nil {
		return &core.StorageError{Op: "InsertDependency", Err: err}
	}
	return nil
}

// IncomingOf returns the jobs s such that (s -> jobID) is an edge.
func (s *GormStore) IncomingOf(ctx context.Context, jobID uint64) ([]core.Job, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&core.Dependency{}).
		Where("dest_job_id = ?", jobID).
		Pluck("source_job_id", &ids).Error; err != nil {
		return nil, &core.StorageError{Op: "IncomingOf", Err: err}
	}
	return s.fetchByIDs(ctx, ids)
}

// OutgoingOf returns the jobs d such that (jobID -> d) is an edge.
func (s *GormStore) OutgoingOf(ctx context.Context, jobID uint64) ([]core.Job, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&core.Dependency{}).
		Where("source_job_id = ?", jobID).
		Pluck("dest_job_id", &ids).Error; err != nil {
		return nil, &core.StorageError{Op: "OutgoingOf", Err: err}
	}
	return s.fetchByIDs(ctx, ids)
}

func (s *GormStore) fetchByIDs(ctx context.Context, ids []uint64) ([]core.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var jobs []core.Job
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, &core.StorageError{Op: "fetchByIDs", Err: err}
	}
	return jobs, nil
}

// InsertRelatedEntity associates a job with an external business object.
func (s *GormStore) InsertRelatedEntity(ctx context.Context, re core.RelatedEntity) error {
	if err := s.db.WithContext(ctx).Create(&re).Error; err != nil {
		return &core.StorageError{Op: "InsertRelatedEntity", Err: err}
	}
	return nil
}

// FindForRelatedEntity returns the first job (id ASC) with the given
// command and related entity, optionally restricted to a set of states.
func (s *GormStore) FindForRelatedEntity(ctx context.Context, command string, re core.RelatedEntity, states []core.JobState) (*core.Job, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN job_related_entities ON job_related_entities.job_id = jobs.id").
		Where("jobs.command = ?", command).
		Where("job_related_entities.related_class = ? AND job_related_entities.related_id = ?", re.Class, re.IDJSON)

	if len(states) > 0 {
		q = q.Where("jobs.state IN ?", states)
	}

	var job core.Job
	err := q.Order("jobs.id ASC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "FindForRelatedEntity", Err: err}
	}
	return &job, nil
}

// FindAllForRelatedEntity returns every job associated with the given
// related entity, regardless of command or state.
func (s *GormStore) FindAllForRelatedEntity(ctx context.Context, re core.RelatedEntity) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Joins("JOIN job_related_entities ON job_related_entities.job_id = jobs.id").
		Where("job_related_entities.related_class = ? AND job_related_entities.related_id = ?", re.Class, re.IDJSON).
		Order("jobs.id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "FindAllForRelatedEntity", Err: err}
	}
	return jobs, nil
}

// FindLastErrored returns the most recently closed FAILED, TERMINATED or
// INCOMPLETE jobs, most recent first. CANCELED is deliberately excluded:
// a job canceled because a dependency failed did not itself error out.
func (s *GormStore) FindLastErrored(ctx context.Context, limit int) ([]core.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("state IN ?", []core.JobState{core.StateFailed, core.StateTerminated, core.StateIncomplete}).
		Order("closed_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "FindLastErrored", Err: err}
	}
	return jobs, nil
}

// ListQueues returns the distinct set of queue names in use.
func (s *GormStore) ListQueues(ctx context.Context) ([]string, error) {
	var queues []string
	err := s.db.WithContext(ctx).Model(&core.Job{}).
		Distinct().
		Order("queue").
		Pluck("queue", &queues).Error
	if err != nil {
		return nil, &core.StorageError{Op: "ListQueues", Err: err}
	}
	return queues, nil
}

// AvailableCount returns the true count of PENDING, unclaimed,
// immediately-runnable jobs in queue.
func (s *GormStore) AvailableCount(ctx context.Context, queue string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&core.Job{}).
		Where("queue = ?", queue).
		Where("state = ?", core.StatePending).
		Where("worker_name IS NULL").
		Where("(execute_after IS NULL OR execute_after < ?)", time.Now()).
		Count(&count).Error
	if err != nil {
		return 0, &core.StorageError{Op: "AvailableCount", Err: err}
	}
	return count, nil
}

// RetryJobsOf returns the retry children of jobID.
func (s *GormStore) RetryJobsOf(ctx context.Context, jobID uint64) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("original_job_id = ?", jobID).
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "RetryJobsOf", Err: err}
	}
	return jobs, nil
}

// StaleRunning returns one RUNNING, claimed job whose CheckedAt predates
// cutoff, excluding the given ids, or nil when none remain.
func (s *GormStore) StaleRunning(ctx context.Context, cutoff time.Time, excludedIDs []uint64) (*core.Job, error) {
	q := s.db.WithContext(ctx).
		Where("state = ?", core.StateRunning).
		Where("worker_name IS NOT NULL").
		Where("checked_at < ?", cutoff)
	if len(excludedIDs) > 0 {
		q = q.Where("id NOT IN ?", excludedIDs)
	}

	var job core.Job
	err := q.Order("id ASC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "StaleRunning", Err: err}
	}
	return &job, nil
}

// FinishedOlderThan returns FINISHED non-retry jobs closed before cutoff.
func (s *GormStore) FinishedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("state = ?", core.StateFinished).
		Where("is_retry_job = ?", false).
		Where("closed_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "FinishedOlderThan", Err: err}
	}
	return jobs, nil
}

// ClosedOlderThan returns any non-retry, non-FINISHED job whose closedAt
// is set and older than cutoff (FAILED, TERMINATED, INCOMPLETE, CANCELED).
func (s *GormStore) ClosedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("state != ?", core.StateFinished).
		Where("is_retry_job = ?", false).
		Where("closed_at IS NOT NULL AND closed_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "ClosedOlderThan", Err: err}
	}
	return jobs, nil
}

// CanceledCreatedBefore returns CANCELED non-retry jobs with no closedAt
// (which ClosedOlderThan never selects); these are aged out by createdAt
// instead.
func (s *GormStore) CanceledCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("state = ?", core.StateCanceled).
		Where("is_retry_job = ?", false).
		Where("closed_at IS NULL").
		Where("created_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, &core.StorageError{Op: "CanceledCreatedBefore", Err: err}
	}
	return jobs, nil
}

// DeleteDependenciesReferencing removes every job_dependencies row where
// jobID appears as either source or dest, so a deleted job never leaves
// a dangling edge in either direction.
func (s *GormStore) DeleteDependenciesReferencing(ctx context.Context, jobID uint64) error {
	err := s.db.WithContext(ctx).
		Where("source_job_id = ? OR dest_job_id = ?", jobID, jobID).
		Delete(&core.Dependency{}).Error
	if err != nil {
		return &core.StorageError{Op: "DeleteDependenciesReferencing", Err: err}
	}
	return nil
}
