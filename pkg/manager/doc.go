// Package manager implements the orchestration core: submitting jobs,
// deduplicating them via getOrCreate, claiming the next runnable job
// under contention, and closing a job with the recursive cascade that
// propagates a terminal state through its dependency graph and retry
// chain. It is the one package that holds all of core.Store,
// retry.Scheduler, graph.Graph and statemachine together.
package manager
