package manager

import (
	"time"

	"github.com/levuro/jobqueue/pkg/core"
	"github.com/levuro/jobqueue/pkg/security"
)

// submitConfig holds per-call submission settings.
type submitConfig struct {
	queue        string
	priority     int
	maxRetries   int
	dependencies []uint64
	executeAfter *time.Time
}

func newSubmitConfig() *submitConfig {
	return &submitConfig{queue: core.DefaultQueue}
}

// SubmitOption configures Submit and GetOrCreate.
type SubmitOption interface {
	applySubmit(*submitConfig)
}

type submitOptionFunc func(*submitConfig)

func (f submitOptionFunc) applySubmit(c *submitConfig) { f(c) }

// InQueue assigns the job to a named queue instead of "default".
func InQueue(name string) SubmitOption {
	return submitOptionFunc(func(c *submitConfig) {
		c.queue = name
	})
}

// WithPriority sets the job priority (lower value runs first).
func WithPriority(p int) SubmitOption {
	return submitOptionFunc(func(c *submitConfig) {
		c.priority = p
	})
}

// WithMaxRetries sets the retry budget. Values are clamped via
// security.ClampRetries.
func WithMaxRetries(n int) SubmitOption {
	return submitOptionFunc(func(c *submitConfig) {
		c.maxRetries = security.ClampRetries(n)
	})
}

// DependsOn records prerequisite job ids: the submitted job will not be
// startable until every one of them reaches FINISHED.
func DependsOn(jobIDs ...uint64) SubmitOption {
	return submitOptionFunc(func(c *submitConfig) {
		c.dependencies = append(c.dependencies, jobIDs...)
	})
}

// ExecuteAfter delays eligibility until the given time.
func ExecuteAfter(t time.Time) SubmitOption {
	return submitOptionFunc(func(c *submitConfig) {
		c.executeAfter = &t
	})
}
