package booking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotEnoughSlots marks the routine "no qualifying contiguous availability"
// outcome of an attempt. It is expected during contention, not a fault.
var ErrNotEnoughSlots = errors.New("not enough consecutive slots available")

// AttemptFailure records why one attempt in a job failed. Index is zero-based
// position in the configured attempt list.
type AttemptFailure struct {
	Index int
	Err   error
}

// AllAttemptsFailedError is raised when every attempt of a job has failed.
// Failures preserves configuration order, one entry per attempt.
type AllAttemptsFailedError struct {
	Job      string
	Failures []AttemptFailure
}

func (e *AllAttemptsFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "job %q: all %d booking attempt(s) failed", e.Job, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; attempt %d: %v", f.Index+1, f.Err)
	}
	return b.String()
}

func (e *AllAttemptsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
