package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Executor runs a single booking attempt end to end.
type Executor interface {
	Execute(ctx context.Context, a Attempt, date time.Time) Outcome
}

// AttemptExecutor authenticates, narrows availability to the attempt's time
// window, finds a consecutive run, resolves each range to a purchasable slot
// and completes checkout. Any step's failure becomes the attempt's failure;
// nothing is retried here and a cart left behind by a failed checkout is not
// cleaned up (the provider expires carts on its own).
type AttemptExecutor struct {
	NewClient ClientFactory
	Log       *slog.Logger
}

func (e AttemptExecutor) Execute(ctx context.Context, a Attempt, date time.Time) Outcome {
	if e.NewClient == nil {
		return Outcome{Err: fmt.Errorf("client factory is nil")}
	}
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("venue", a.Venue, "activity", a.Activity, "date", date.Format("2006-01-02"))

	client := e.NewClient(a.Username, a.Password)
	if err := client.Authenticate(ctx); err != nil {
		return Outcome{Err: fmt.Errorf("authenticate %s: %w", a.Username, err)}
	}

	times, err := client.AvailableTimes(ctx, a.Venue, a.Activity, date)
	if err != nil {
		return Outcome{Err: fmt.Errorf("fetch available times: %w", err)}
	}
	log.Info("fetched available times", "count", len(times), "times", joinRanges(times))

	filtered := FilterWindow(times, a.MinTime, a.MaxTime)
	log.Info("filtered to time window", "min", a.MinTime.String(), "max", maxLabel(a.MaxTime),
		"count", len(filtered), "times", joinRanges(filtered))

	start, ok := FindConsecutiveRun(filtered, a.NSlots)
	if !ok {
		return Outcome{Err: fmt.Errorf("could not find %d consecutive slots between %s and %s: %w",
			a.NSlots, a.MinTime, maxLabel(a.MaxTime), ErrNotEnoughSlots)}
	}
	run := filtered[start : start+a.NSlots]
	log.Info("found consecutive run", "start", run[0].Start.String(), "end", run[len(run)-1].End.String())

	slots := make([]Slot, 0, len(run))
	for _, tr := range run {
		candidates, err := client.AvailableSlots(ctx, a.Venue, a.Activity, date, tr.Start, tr.End)
		if err != nil {
			return Outcome{Err: fmt.Errorf("fetch slots for %s: %w", tr, err)}
		}
		if len(candidates) == 0 {
			return Outcome{Err: fmt.Errorf("no bookable slot left for %s: %w", tr, ErrNotEnoughSlots)}
		}
		// First candidate wins; the provider decides ordering (typically by
		// court number) and we do not second-guess it.
		slots = append(slots, candidates[0])
	}

	cart, err := client.AddToCart(ctx, slots)
	if err != nil {
		return Outcome{Err: fmt.Errorf("add %d slot(s) to cart: %w", len(slots), err)}
	}
	orderID, err := client.Checkout(ctx, cart)
	if err != nil {
		return Outcome{Err: fmt.Errorf("checkout cart %d: %w", cart.ID, err)}
	}
	return Outcome{OrderID: orderID}
}

func joinRanges(times []TimeRange) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func maxLabel(max *ClockTime) string {
	if max == nil {
		return "any"
	}
	return max.String()
}
