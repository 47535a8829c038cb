package statemachine

import (
	"fmt"

	"github.com/levuro/jobqueue/pkg/core"
)

// IsFinal reports whether s is a terminal state.
func IsFinal(s core.JobState) bool {
	switch s {
	case core.StateFinished, core.StateFailed, core.StateTerminated, core.StateIncomplete, core.StateCanceled:
		return true
	default:
		return false
	}
}

// IsClosedNonSuccessful reports whether s is terminal but not success.
func IsClosedNonSuccessful(s core.JobState) bool {
	switch s {
	case core.StateFailed, core.StateTerminated, core.StateIncomplete, core.StateCanceled:
		return true
	default:
		return false
	}
}

// IsStartable reports whether job is PENDING and every job in incoming
// (its upstream dependencies) has finished successfully. The caller
// fetches incoming via graph.Graph.Incoming and passes the result in —
// this package never touches storage.
func IsStartable(job *core.Job, incoming []core.Job) bool {
	if job.State != core.StatePending {
		return false
	}
	for _, s := range incoming {
		if s.State != core.StateFinished {
			return false
		}
	}
	return true
}

// ValidateCloseState rejects any finalState argument to Close that is
// not one of the five allowed terminal states.
func ValidateCloseState(job *core.Job, finalState core.JobState) error {
	switch finalState {
	case core.StateFinished, core.StateFailed, core.StateTerminated, core.StateIncomplete, core.StateCanceled:
		return nil
	default:
		return &core.InvalidStateError{
			JobID:        job.ID,
			CurrentState: job.State,
			FinalState:   finalState,
			Reason:       fmt.Sprintf("%q is not an allowed close state", finalState),
		}
	}
}

// IsRetryAllowed reports whether j may spawn another retry job, given the
// number of retry children it already has.
func IsRetryAllowed(j *core.Job, existingRetryCount int) bool {
	return existingRetryCount < j.MaxRetries
}
