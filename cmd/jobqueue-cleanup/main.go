// Command jobqueue-cleanup runs the stale-running sweep and retention
// deletion passes against a job queue database, once or on a recurring
// schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/levuro/jobqueue/pkg/cleanup"
	"github.com/levuro/jobqueue/pkg/manager"
	"github.com/levuro/jobqueue/pkg/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dsn                   string
		driver                string
		maxRetention          time.Duration
		maxRetentionSucceeded time.Duration
		perCall               int
		staleAfter            time.Duration
		watch                 string
	)

	cmd := &cobra.Command{
		Use:   "jobqueue-cleanup",
		Short: "Close stale jobs and prune old closed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(driver, dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			store := storage.NewGormStore(db)
			mgr := manager.New(store)
			c := cleanup.New(store, mgr,
				cleanup.WithMaxRetention(maxRetention),
				cleanup.WithMaxRetentionSucceeded(maxRetentionSucceeded),
				cleanup.WithPerCall(perCall),
				cleanup.WithStaleAfter(staleAfter),
			)

			if watch == "" {
				return runOnce(cmd.Context(), c)
			}
			return runWatch(cmd.Context(), c, watch)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "file:jobqueue.db?_pragma=busy_timeout(5000)", "database connection string")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver: sqlite or postgres")
	cmd.Flags().DurationVar(&maxRetention, "max-retention", 7*24*time.Hour, "age at which non-FINISHED closed jobs are pruned")
	cmd.Flags().DurationVar(&maxRetentionSucceeded, "max-retention-succeeded", time.Hour, "age at which FINISHED jobs are pruned")
	cmd.Flags().IntVar(&perCall, "per-call", 1000, "maximum jobs deleted in one run")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 5*time.Minute, "RUNNING jobs with no heartbeat older than this are closed INCOMPLETE")
	cmd.Flags().StringVar(&watch, "watch", "", "run on a recurring cron schedule instead of once (e.g. \"*/5 * * * *\")")

	return cmd
}

func openDB(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

func runOnce(ctx context.Context, c *cleanup.Cleanup) error {
	report, err := c.Run(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func runWatch(ctx context.Context, c *cleanup.Cleanup, expr string) error {
	sched := cron.New()
	_, err := sched.AddFunc(expr, func() {
		report, err := c.Run(ctx)
		if err != nil {
			slog.Error("cleanup run failed", "error", err)
			return
		}
		printReport(report)
	})
	if err != nil {
		return fmt.Errorf("invalid --watch schedule %q: %w", expr, err)
	}

	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	return nil
}

func printReport(report *cleanup.Report) {
	fmt.Printf("run %s: closed %d stale job(s), deleted %d job(s), started %s\n",
		report.RunID, report.StaleClosed, report.Deleted, humanize.Time(report.StartedAt))
}
