package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/levuro/jobqueue/pkg/core"
)

// newTestStore opens a fresh, migrated Store for a test. When
// TEST_DATABASE_URL is set it connects to that Postgres instance instead
// of an in-memory SQLite database, so the suite can run against both
// drivers without changing a single test body.
func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), gormCfg)
	}
	require.NoError(t, err)

	store := NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		sqlDB, dbErr := db.DB()
		if dbErr == nil {
			_ = sqlDB.Close()
		}
	})

	return store
}

func newJob(command string, priority int) *core.Job {
	return &core.Job{
		Command:  command,
		Args:     []byte("[]"),
		Priority: priority,
		Queue:    core.DefaultQueue,
		State:    core.StatePending,
	}
}
