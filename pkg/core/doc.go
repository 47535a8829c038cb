// Package core provides the domain model for the job queue: the Job
// record, its dependency and related-entity side tables, the Store
// contract a persistence layer must satisfy, the event type dispatched
// around terminal-state transitions, and the error kinds the rest of
// the module returns.
//
// Most callers should import the root package github.com/levuro/jobqueue
// instead of this package directly.
package core
