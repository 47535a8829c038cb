package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/manager"
	"github.com/levuro/jobqueue/pkg/storage"
)

func newManager(t *testing.T) (*manager.Manager, core.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() {
		sqlDB, dbErr := db.DB()
		if dbErr == nil {
			_ = sqlDB.Close()
		}
	})
	return manager.New(store), store
}

func TestSimpleSuccess(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	job, err := m.Submit(ctx, "echo", []byte(`["hi"]`))
	require.NoError(t, err)

	var excluded []uint64
	claimed, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, core.StateRunning, claimed.State)

	require.NoError(t, m.Close(ctx, claimed, core.StateFinished))

	excluded = nil
	next, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRetryThenSucceed(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	job, err := m.Submit(ctx, "flaky", nil, manager.WithMaxRetries(2))
	require.NoError(t, err)

	var excluded []uint64
	claimed, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, m.Close(ctx, claimed, core.StateFailed))

	retries, err := store.RetryJobsOf(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, retries, 1)
	retryJob := retries[0]
	assert.True(t, retryJob.IsRetryJob)
	require.NotNil(t, retryJob.OriginalJobID)
	assert.Equal(t, job.ID, *retryJob.OriginalJobID)
	assert.Equal(t, core.StatePending, retryJob.State)
	require.NotNil(t, retryJob.ExecuteAfter)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), *retryJob.ExecuteAfter, 2*time.Second)

	unchanged, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateRunning, unchanged.State)

	// The retry is not claimable before its ExecuteAfter; move it into the
	// past rather than sleeping through the backoff delay.
	past := time.Now().Add(-time.Second)
	retryJob.ExecuteAfter = &past
	require.NoError(t, store.Update(ctx, &retryJob))

	excluded = nil
	claimedRetry, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, claimedRetry)
	assert.Equal(t, retryJob.ID, claimedRetry.ID)

	require.NoError(t, m.Close(ctx, claimedRetry, core.StateFinished))

	finishedRetry, err := store.GetByID(ctx, claimedRetry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFinished, finishedRetry.State)

	finishedOriginal, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFinished, finishedOriginal.State)
}

func TestRetryExhaustionCancelsDependents(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	j, err := m.Submit(ctx, "flaky", nil, manager.WithMaxRetries(1))
	require.NoError(t, err)
	d, err := m.Submit(ctx, "downstream", nil, manager.DependsOn(j.ID))
	require.NoError(t, err)

	var excluded []uint64
	claimed, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.Equal(t, j.ID, claimed.ID)
	require.NoError(t, m.Close(ctx, claimed, core.StateFailed))

	retries, err := store.RetryJobsOf(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, retries, 1)
	retryJob := retries[0]

	retryJob.State = core.StateRunning
	require.NoError(t, store.Update(ctx, &retryJob))
	require.NoError(t, m.Close(ctx, &retryJob, core.StateFailed))

	finalJ, err := store.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, finalJ.State)

	finalD, err := store.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCanceled, finalD.State)
}

func TestGetOrCreate_SameJobReturned(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	first, err := m.GetOrCreate(ctx, "x", []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, first.State)

	second, err := m.GetOrCreate(ctx, "x", []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	a, err := m.Submit(ctx, "a", nil, manager.WithPriority(0))
	require.NoError(t, err)
	b, err := m.Submit(ctx, "b", nil, manager.WithPriority(-5))
	require.NoError(t, err)
	c, err := m.Submit(ctx, "c", nil, manager.WithPriority(0))
	require.NoError(t, err)

	var excluded []uint64
	first, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, b.ID, first.ID)

	second, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, second.ID)

	third, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ID, third.ID)
}

func TestClaimNext_WaitsForDependency(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	upstream, err := m.Submit(ctx, "upstream", nil)
	require.NoError(t, err)
	_, err = m.Submit(ctx, "downstream", nil, manager.DependsOn(upstream.ID))
	require.NoError(t, err)

	var excluded []uint64
	first, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, upstream.ID, first.ID)

	second, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestClose_IdempotentOnTerminalState(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	job, err := m.Submit(ctx, "once", nil)
	require.NoError(t, err)
	var excluded []uint64
	claimed, err := m.ClaimNext(ctx, "w1", &excluded, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, claimed, core.StateFinished))

	require.NoError(t, m.Close(ctx, claimed, core.StateFailed))

	reloaded, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFinished, reloaded.State)
}

func TestClose_TerminatesOnCycle(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	a, err := m.Submit(ctx, "a", nil)
	require.NoError(t, err)
	b, err := m.Submit(ctx, "b", nil, manager.DependsOn(a.ID))
	require.NoError(t, err)

	require.NoError(t, store.InsertDependency(ctx, core.Dependency{SourceJobID: b.ID, DestJobID: a.ID}))

	require.NoError(t, m.Close(ctx, a, core.StateCanceled))

	finalA, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCanceled, finalA.State)

	finalB, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCanceled, finalB.State)
}

func TestFindForRelatedEntity(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	job, err := m.Submit(ctx, "export-invoice", nil)
	require.NoError(t, err)
	re := core.RelatedEntity{JobID: job.ID, Class: "Invoice", IDJSON: `{"id":1}`}
	require.NoError(t, store.InsertRelatedEntity(ctx, re))

	found, err := m.FindForRelatedEntity(ctx, "export-invoice", re, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, job.ID, found.ID)

	_, err = m.FindForRelatedEntity(ctx, "export-invoice", core.RelatedEntity{Class: "Invoice", IDJSON: ""}, nil)
	assert.Error(t, err)
}
