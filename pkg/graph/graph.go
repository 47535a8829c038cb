package graph

import (
	"context"

	"github.com/levuro/jobqueue/pkg/core"
)

// Graph resolves dependency edges against a Store. It holds no state of
// its own and performs no caching, per spec §4.3.
type Graph struct {
	store core.Store
}

// New builds a Graph over the given Store.
func New(store core.Store) *Graph {
	return &Graph{store: store}
}

// Incoming returns the jobs s such that (s -> job) is a dependency edge:
// job cannot run until every one of these has finished.
func (g *Graph) Incoming(ctx context.Context, job *core.Job) ([]core.Job, error) {
	jobs, err := g.store.IncomingOf(ctx, job.ID)
	if err != nil {
		return nil, &core.StorageError{Op: "graph.Incoming", Err: err}
	}
	return jobs, nil
}

// Outgoing returns the jobs d such that (job -> d) is a dependency edge:
// jobs that are waiting on job to finish.
func (g *Graph) Outgoing(ctx context.Context, job *core.Job) ([]core.Job, error) {
	jobs, err := g.store.OutgoingOf(ctx, job.ID)
	if err != nil {
		return nil, &core.StorageError{Op: "graph.Outgoing", Err: err}
	}
	return jobs, nil
}
