package better

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdopierre/book-better-activities/internal/booking"
)

func testDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2026-03-12")
	require.NoError(t, err)
	return d
}

// newTestServer wires the happy-path Better API endpoints and records
// requests for assertions.
func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/customer/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})

	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"membership_user":{"id":555}}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := New("user@example.com", "hunter2", WithBaseURL(srv.URL+"/"))
	return srv, client
}

func TestAuthenticate(t *testing.T) {
	_, client := newTestServer(t)
	require.NoError(t, client.Authenticate(context.Background()))

	bad := New("user@example.com", "wrong", WithBaseURL(client.baseURL))
	err := bad.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestAvailableTimes_FiltersFullAndBooked(t *testing.T) {
	srv, client := newTestServer(t)
	srv.Config.Handler.(*http.ServeMux).HandleFunc(
		"GET /activities/venue/{venue}/activity/{activity}/times",
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "hackney-britannia", r.PathValue("venue"))
			assert.Equal(t, "badminton-40min", r.PathValue("activity"))
			assert.Equal(t, "2026-03-12", r.URL.Query().Get("date"))
			_, _ = w.Write([]byte(`{"data":[
				{"starts_at":{"format_24_hour":"09:00"},"ends_at":{"format_24_hour":"09:40"},
				 "name":"Badminton 40min","location":"Sports Hall","spaces":3,
				 "price":{"formatted_amount":"£8.80"},"duration":40,"booking":null},
				{"starts_at":{"format_24_hour":"09:40"},"ends_at":{"format_24_hour":"10:20"},
				 "name":"Badminton 40min","location":"Sports Hall","spaces":0,
				 "price":{"formatted_amount":"£8.80"},"duration":40,"booking":null},
				{"starts_at":{"format_24_hour":"10:20"},"ends_at":{"format_24_hour":"11:00"},
				 "name":"Badminton 40min","location":"Sports Hall","spaces":2,
				 "price":{"formatted_amount":"£8.80"},"duration":40,"booking":{"id":9}}
			]}`))
		})

	times, err := client.AvailableTimes(context.Background(), "hackney-britannia", "badminton-40min", testDate(t))
	require.NoError(t, err)
	require.Len(t, times, 1, "full and already-booked windows are dropped")
	assert.Equal(t, "09:00-09:40", times[0].String())
	assert.Equal(t, 3, times[0].Spaces)
	assert.Equal(t, "£8.80", times[0].Price)
	assert.Equal(t, 40, times[0].DurationMins)
}

func TestAvailableSlots(t *testing.T) {
	srv, client := newTestServer(t)
	srv.Config.Handler.(*http.ServeMux).HandleFunc(
		"GET /activities/venue/{venue}/activity/{activity}/slots",
		func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "2026-03-12", q.Get("date"))
			assert.Equal(t, "09:00", q.Get("start_time"))
			assert.Equal(t, "09:40", q.Get("end_time"))
			_, _ = w.Write([]byte(`{"data":[
				{"id":11,"location":{"id":1,"slug":"court-1"},"pricing_option_id":4,
				 "restriction_ids":[2],"cart_type":"activity","spaces":1,"booking":null},
				{"id":12,"location":{"id":2,"slug":"court-2"},"pricing_option_id":4,
				 "restriction_ids":[],"cart_type":"activity","spaces":0,"booking":null}
			]}`))
		})

	start, err := booking.ParseClock("09:00")
	require.NoError(t, err)
	end, err := booking.ParseClock("09:40")
	require.NoError(t, err)

	slots, err := client.AvailableSlots(context.Background(), "v", "a", testDate(t), start, end)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 11, slots[0].ID)
	assert.Equal(t, "court-1", slots[0].Name)
	assert.Equal(t, []int{2}, slots[0].RestrictionIDs)
}

func TestAddToCartAndCheckout_WithCredit(t *testing.T) {
	srv, client := newTestServer(t)
	mux := srv.Config.Handler.(*http.ServeMux)

	var gotCart, gotCredits, gotCheckout map[string]any
	mux.HandleFunc("POST /activities/cart/add", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCart))
		_, _ = w.Write([]byte(`{"data":{"id":77,"total":880,"source":"activity"}}`))
	})
	mux.HandleFunc("POST /credits/apply", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCredits))
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /checkout/complete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCheckout))
		_, _ = w.Write([]byte(`{"complete_order_id":98765}`))
	})

	ctx := context.Background()
	slots := []booking.Slot{
		{ID: 11, PricingOptionID: 4, RestrictionIDs: []int{2}, CartType: "activity"},
		{ID: 21, PricingOptionID: 4, RestrictionIDs: []int{2}, CartType: "activity"},
	}
	cart, err := client.AddToCart(ctx, slots)
	require.NoError(t, err)
	assert.Equal(t, booking.Cart{ID: 77, Amount: 880, Source: "activity"}, cart)

	assert.Equal(t, float64(555), gotCart["membership_user_id"])
	items := gotCart["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, float64(11), first["id"])
	assert.Equal(t, true, first["apply_benefit"])

	orderID, err := client.Checkout(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, "98765", orderID)

	// a non-zero total reserves credit and pays with it
	reserve := gotCredits["credits_to_reserve"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(880), reserve["amount"])
	payments := gotCheckout["payments"].([]any)
	require.Len(t, payments, 1)
	assert.Equal(t, "credit", payments[0].(map[string]any)["tender_type"])
}

func TestCheckout_ZeroTotalSkipsCredits(t *testing.T) {
	srv, client := newTestServer(t)
	mux := srv.Config.Handler.(*http.ServeMux)

	creditsCalled := false
	mux.HandleFunc("POST /credits/apply", func(w http.ResponseWriter, r *http.Request) {
		creditsCalled = true
		_, _ = w.Write([]byte(`{}`))
	})
	var gotCheckout map[string]any
	mux.HandleFunc("POST /checkout/complete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCheckout))
		_, _ = w.Write([]byte(`{"complete_order_id":111}`))
	})

	orderID, err := client.Checkout(context.Background(), booking.Cart{ID: 1, Amount: 0, Source: "activity"})
	require.NoError(t, err)
	assert.Equal(t, "111", orderID)
	assert.False(t, creditsCalled)
	assert.Empty(t, gotCheckout["payments"])
}

func TestDo_RetriesTransientServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))
	defer srv.Close()

	client := New("u", "p", WithBaseURL(srv.URL+"/"))
	// shrink the backoff by racing a short deadline would slow the suite;
	// two 503s cost 1s+2s which is acceptable for this test
	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New("u", "p", WithBaseURL(srv.URL+"/"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := client.Authenticate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")
	assert.Equal(t, int32(maxTries), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New("u", "p", WithBaseURL(srv.URL+"/"))
	client.token = "tok"
	_, err := client.AvailableTimes(context.Background(), "v", "a", testDate(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
