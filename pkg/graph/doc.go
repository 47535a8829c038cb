// Package graph provides read-only traversal of the job dependency DAG:
// for a given job, its incoming (upstream) and outgoing (downstream)
// edges, each resolved to the referenced Job rows in one batched fetch.
// Traversal is not cached; callers that walk the graph (manager.Manager)
// carry their own visited set to guard against cycles and diamonds.
package graph
