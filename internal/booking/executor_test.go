package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the provider's responses for one attempt.
type fakeClient struct {
	authErr  error
	times    []TimeRange
	timesErr error

	// slotsByRange maps "start-end" to the candidates for that range.
	slotsByRange map[string][]Slot

	cart        Cart
	cartErr     error
	orderID     string
	checkoutErr error

	addedSlots []Slot
	authCalls  int
}

func (f *fakeClient) Authenticate(ctx context.Context) error {
	f.authCalls++
	return f.authErr
}

func (f *fakeClient) AvailableTimes(ctx context.Context, venue, activity string, date time.Time) ([]TimeRange, error) {
	return f.times, f.timesErr
}

func (f *fakeClient) AvailableSlots(ctx context.Context, venue, activity string, date time.Time, start, end ClockTime) ([]Slot, error) {
	return f.slotsByRange[start.String()+"-"+end.String()], nil
}

func (f *fakeClient) AddToCart(ctx context.Context, slots []Slot) (Cart, error) {
	f.addedSlots = slots
	return f.cart, f.cartErr
}

func (f *fakeClient) Checkout(ctx context.Context, cart Cart) (string, error) {
	return f.orderID, f.checkoutErr
}

func factoryFor(c Client) ClientFactory {
	return func(username, password string) Client { return c }
}

func testAttempt(t *testing.T) Attempt {
	return Attempt{
		Username: "user@example.com",
		Password: "hunter2",
		Venue:    "hackney-britannia",
		Activity: "badminton-40min",
		MinTime:  clock(t, "09:00"),
		NSlots:   2,
	}
}

func TestAttemptExecutor_BooksConsecutiveRun(t *testing.T) {
	fc := &fakeClient{
		times: ranges(t,
			[2]string{"09:00", "09:40"},
			[2]string{"09:40", "10:20"},
			[2]string{"10:25", "11:05"},
		),
		slotsByRange: map[string][]Slot{
			"09:00-09:40": {{ID: 11, Name: "court-1"}, {ID: 12, Name: "court-2"}},
			"09:40-10:20": {{ID: 21, Name: "court-1"}},
		},
		cart:    Cart{ID: 7, Amount: 0, Source: "activity"},
		orderID: "X123",
	}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	require.NoError(t, out.Err)
	assert.Equal(t, "X123", out.OrderID)
	assert.Equal(t, 1, fc.authCalls)

	// first candidate per range, in run order
	require.Len(t, fc.addedSlots, 2)
	assert.Equal(t, 11, fc.addedSlots[0].ID)
	assert.Equal(t, 21, fc.addedSlots[1].ID)
}

func TestAttemptExecutor_NoRunFound(t *testing.T) {
	fc := &fakeClient{
		times: ranges(t,
			[2]string{"09:00", "09:40"},
			[2]string{"10:00", "10:40"},
		),
	}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, ErrNotEnoughSlots)
	assert.Empty(t, fc.addedSlots, "nothing should reach the cart")
}

func TestAttemptExecutor_WindowAppliedBeforeRunSearch(t *testing.T) {
	// 08:00-08:40 and 08:40-09:20 are adjacent but outside the window;
	// nothing inside it chains.
	fc := &fakeClient{
		times: ranges(t,
			[2]string{"08:00", "08:40"},
			[2]string{"08:40", "09:20"},
			[2]string{"09:30", "10:10"},
		),
	}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	assert.ErrorIs(t, out.Err, ErrNotEnoughSlots)
}

func TestAttemptExecutor_AuthFailure(t *testing.T) {
	authErr := errors.New("bad credentials")
	fc := &fakeClient{authErr: authErr}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, authErr)
}

func TestAttemptExecutor_TimesFetchFailure(t *testing.T) {
	fc := &fakeClient{timesErr: fmt.Errorf("status=502")}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	require.Error(t, out.Err)
	assert.NotErrorIs(t, out.Err, ErrNotEnoughSlots)
}

func TestAttemptExecutor_SlotGoneBetweenTimesAndSlots(t *testing.T) {
	// the run is found but a range has no purchasable slot left by the time
	// we resolve it
	fc := &fakeClient{
		times: ranges(t,
			[2]string{"09:00", "09:40"},
			[2]string{"09:40", "10:20"},
		),
		slotsByRange: map[string][]Slot{
			"09:00-09:40": {{ID: 11}},
		},
	}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	assert.ErrorIs(t, out.Err, ErrNotEnoughSlots)
}

func TestAttemptExecutor_CheckoutFailure(t *testing.T) {
	fc := &fakeClient{
		times: ranges(t,
			[2]string{"09:00", "09:40"},
			[2]string{"09:40", "10:20"},
		),
		slotsByRange: map[string][]Slot{
			"09:00-09:40": {{ID: 11}},
			"09:40-10:20": {{ID: 21}},
		},
		cart:        Cart{ID: 9, Amount: 880, Source: "activity"},
		checkoutErr: errors.New("payment rejected"),
	}

	out := AttemptExecutor{NewClient: factoryFor(fc)}.Execute(context.Background(), testAttempt(t), time.Now())
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "checkout")
}
