package booking

import (
	"context"
	"log/slog"
	"time"
)

// Notifier receives terminal job events. Implementations must not block the
// orchestrator on failure; errors are theirs to log.
type Notifier interface {
	BookingSucceeded(ctx context.Context, job string, attemptNum int, orderID string)
	BookingFailed(ctx context.Context, job string, totalAttempts int, failures []AttemptFailure)
}

// RunRecord is one finished job firing, persisted for diagnostics.
type RunRecord struct {
	Job      string
	Date     time.Time
	OrderID  string
	Failures []AttemptFailure
}

// Recorder persists RunRecords. The orchestrator treats recording as best
// effort: a recorder error is logged and never fails the job.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// Orchestrator tries a job's attempts in priority order, stopping at the
// first success. Attempts are strictly sequential; a later attempt starts
// only after the previous one's terminal outcome, so cheaper options are
// exhausted first and one account never holds two live carts.
type Orchestrator struct {
	Exec     Executor
	Notifier Notifier
	Recorder Recorder
	Log      *slog.Logger
}

// RunJob returns the order id of the first successful attempt. When every
// attempt fails it returns an *AllAttemptsFailedError carrying each failure
// in configuration order. The attempt list is never retried within a firing.
func (o Orchestrator) RunJob(ctx context.Context, job string, attempts []Attempt, date time.Time) (string, error) {
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("job", job, "date", date.Format("2006-01-02"))
	log.Info("starting booking job", "attempts", len(attempts))

	var failures []AttemptFailure
	for i, a := range attempts {
		log.Info("starting attempt",
			"attempt", i+1, "total", len(attempts),
			"venue", a.Venue, "activity", a.Activity,
			"window", a.MinTime.String()+"-"+maxLabel(a.MaxTime), "n_slots", a.NSlots)

		out := o.Exec.Execute(ctx, a, date)
		if out.Succeeded() {
			log.Info("attempt succeeded", "attempt", i+1, "order_id", out.OrderID)
			if o.Notifier != nil {
				o.Notifier.BookingSucceeded(ctx, job, i+1, out.OrderID)
			}
			o.record(ctx, log, RunRecord{Job: job, Date: date, OrderID: out.OrderID, Failures: failures})
			return out.OrderID, nil
		}
		log.Warn("attempt failed", "attempt", i+1, "error", out.Err)
		failures = append(failures, AttemptFailure{Index: i, Err: out.Err})
	}

	log.Error("all attempts failed, no booking made", "attempts", len(attempts))
	if o.Notifier != nil {
		o.Notifier.BookingFailed(ctx, job, len(attempts), failures)
	}
	o.record(ctx, log, RunRecord{Job: job, Date: date, Failures: failures})
	return "", &AllAttemptsFailedError{Job: job, Failures: failures}
}

func (o Orchestrator) record(ctx context.Context, log *slog.Logger, rec RunRecord) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.Record(ctx, rec); err != nil {
		log.Warn("could not record run", "error", err)
	}
}
