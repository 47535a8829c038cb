package cleanup

import (
	"log/slog"
	"time"

	"github.com/levuro/jobqueue/pkg/retry"
)

const (
	// defaultMaxRetention prunes non-retry closed jobs older than this,
	// matching spec.md §4.6 pass 2/3 default of "7 days".
	defaultMaxRetention = 7 * 24 * time.Hour

	// defaultMaxRetentionSucceeded prunes FINISHED non-retry jobs older
	// than this, matching spec.md §4.6 pass 1 default of "1 hour".
	defaultMaxRetentionSucceeded = time.Hour

	// defaultPerCall caps total deletions per Run invocation.
	defaultPerCall = 1000

	// defaultStaleAfter is the RUNNING-without-heartbeat threshold.
	defaultStaleAfter = 5 * time.Minute

	// batchSize bounds each single retention query, per spec.md §4.6
	// ("each batched (<=100 per query)").
	batchSize = 100
)

type config struct {
	maxRetention          time.Duration
	maxRetentionSucceeded time.Duration
	perCall               int
	staleAfter            time.Duration
	scheduler             retry.Scheduler
	logger                *slog.Logger
}

func newConfig() *config {
	return &config{
		maxRetention:          defaultMaxRetention,
		maxRetentionSucceeded: defaultMaxRetentionSucceeded,
		perCall:               defaultPerCall,
		staleAfter:            defaultStaleAfter,
		scheduler:             retry.NewExponentialScheduler(retry.DefaultBaseSeconds),
		logger:                slog.Default(),
	}
}

// Option configures a Cleanup.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithMaxRetention overrides the retention cutoff for passes 2 and 3.
func WithMaxRetention(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.maxRetention = d
	})
}

// WithMaxRetentionSucceeded overrides the retention cutoff for pass 1.
func WithMaxRetentionSucceeded(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.maxRetentionSucceeded = d
	})
}

// WithPerCall caps the total number of jobs deleted in one Run call.
func WithPerCall(n int) Option {
	return optionFunc(func(c *config) {
		c.perCall = n
	})
}

// WithStaleAfter overrides the RUNNING-without-heartbeat threshold.
func WithStaleAfter(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.staleAfter = d
	})
}

// WithScheduler overrides the retry scheduler used for jobs resolved
// during dependency cleanup.
func WithScheduler(s retry.Scheduler) Option {
	return optionFunc(func(c *config) {
		c.scheduler = s
	})
}

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = logger
	})
}
