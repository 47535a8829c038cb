package manager

import (
	"log/slog"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/retry"
)

// config holds Manager construction settings.
type config struct {
	scheduler retry.Scheduler
	listeners []core.Listener
	logger    *slog.Logger
}

func newConfig() *config {
	return &config{
		scheduler: retry.NewExponentialScheduler(retry.DefaultBaseSeconds),
		logger:    slog.Default(),
	}
}

// Option configures a Manager.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithScheduler overrides the default exponential retry scheduler.
func WithScheduler(s retry.Scheduler) Option {
	return optionFunc(func(c *config) {
		c.scheduler = s
	})
}

// WithListener registers an event listener invoked during close.
// Listeners apply in the order they were registered.
func WithListener(l core.Listener) Option {
	return optionFunc(func(c *config) {
		c.listeners = append(c.listeners, l)
	})
}

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = logger
	})
}
