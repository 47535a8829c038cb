// Package retry computes the next-attempt timestamp for a failed job.
package retry
