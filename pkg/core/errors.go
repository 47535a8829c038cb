package core

import (
	"errors"
	"fmt"
)

// Sentinel validation errors, matched with errors.Is.
var (
	ErrEmptyCommand     = errors.New("jobs: command must not be empty")
	ErrInvalidQueueName = errors.New("jobs: invalid queue name")
	ErrQueueNameTooLong = errors.New("jobs: queue name too long")
	ErrInvalidRelatedID = errors.New("jobs: related entity id must be a non-empty JSON object")
)

// NotFoundError reports that a job id being closed has no row. Lookups
// such as Find return (nil, nil) instead.
type NotFoundError struct {
	JobID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("jobs: job %d not found", e.JobID)
}

// InvalidArgumentError reports a malformed caller-supplied argument.
type InvalidArgumentError struct {
	Field string
	Err   error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("jobs: invalid argument %q: %v", e.Field, e.Err)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Err }

// InvalidStateError reports a rejected state transition.
type InvalidStateError struct {
	JobID        uint64
	CurrentState JobState
	FinalState   JobState
	Reason       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("jobs: job %d cannot transition %s -> %s: %s",
		e.JobID, e.CurrentState, e.FinalState, e.Reason)
}

// ConflictError reports that getOrCreate's leader-election lost but the
// winning row could not be re-fetched. This should be impossible and
// surfaces storage corruption.
type ConflictError struct {
	Command string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("jobs: getOrCreate conflict for %q: %v", e.Command, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// StorageError wraps an error from a Store operation. WithinTransaction
// wraps whatever error its fn returned (database or not) in one, after
// the transaction has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("jobs: storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError reports a failure decoding an opaque column (Args,
// Output, a related-entity identifier).
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("jobs: failed to decode %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
