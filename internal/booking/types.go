package booking

import (
	"context"
	"time"
)

// TimeRange is one bookable time window returned by the availability query.
// Start and End drive all matching logic; the remaining fields are metadata
// used only for logging and display.
type TimeRange struct {
	Start ClockTime
	End   ClockTime

	Name         string
	Spaces       int
	Price        string
	DurationMins int
}

func (t TimeRange) String() string {
	return t.Start.String() + "-" + t.End.String()
}

// Slot is the purchasable unit behind one TimeRange. Several slots may exist
// for the same range (one per court); selection policy is "first returned".
type Slot struct {
	ID              int
	LocationID      int
	PricingOptionID int
	RestrictionIDs  []int
	Name            string
	CartType        string
}

// Cart is the handle returned by a cart-add call, consumed by checkout.
type Cart struct {
	ID     int
	Amount int
	Source string
}

// Attempt is one booking attempt configuration. A job holds an ordered list
// of these; earlier entries are preferred and tried first.
type Attempt struct {
	Username string
	Password string
	Venue    string
	Activity string

	// MinTime/MaxTime bound the slots considered, inclusive on both ends.
	// MaxTime nil means no upper bound.
	MinTime ClockTime
	MaxTime *ClockTime

	// NSlots is the number of consecutive ranges needed for the full session.
	NSlots int
}

// Outcome is the terminal result of a single attempt.
type Outcome struct {
	OrderID string
	Err     error
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

// Client is the capability surface the booking flow needs from the provider
// API. Implementations hold the credentials they were built with.
type Client interface {
	Authenticate(ctx context.Context) error
	AvailableTimes(ctx context.Context, venue, activity string, date time.Time) ([]TimeRange, error)
	AvailableSlots(ctx context.Context, venue, activity string, date time.Time, start, end ClockTime) ([]Slot, error)
	AddToCart(ctx context.Context, slots []Slot) (Cart, error)
	Checkout(ctx context.Context, cart Cart) (string, error)
}

// ClientFactory builds a client for one set of credentials. Each attempt gets
// a fresh client so fallback attempts never share a session.
type ClientFactory func(username, password string) Client
