package better

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tdopierre/book-better-activities/internal/booking"
)

const defaultBaseURL = "https://better-admin.org.uk/api/"

// ErrAuthFailed marks a rejected login or an expired session.
var ErrAuthFailed = errors.New("authentication failed")

// Client talks to the Better leisure-centre API. It mimics the web app's
// request flow: bearer token from the customer login endpoint, then JSON
// calls with browser-like headers.
type Client struct {
	hc       *http.Client
	baseURL  string
	username string
	password string

	token            string
	membershipUserID int
}

// Option tweaks a Client; used by tests to point at a local server.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(username, password string, opts ...Option) *Client {
	c := &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		baseURL:  defaultBaseURL,
		username: username,
		password: password,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Factory adapts New to the shape the booking flow wants.
func Factory(opts ...Option) booking.ClientFactory {
	return func(username, password string) booking.Client {
		return New(username, password, opts...)
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}
	status, resp, err := c.do(ctx, http.MethodPost, "auth/customer/login", body, false)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusUnprocessableEntity {
		return fmt.Errorf("login rejected for %s (status=%d): %w", c.username, status, ErrAuthFailed)
	}
	if status >= 400 {
		return fmt.Errorf("login failed (status=%d)", status)
	}
	var r struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &r); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if r.Token == "" {
		return fmt.Errorf("login response had no token: %w", ErrAuthFailed)
	}
	c.token = r.Token
	return nil
}

// ensureAuth logs in lazily so one-shot calls work without an explicit
// Authenticate.
func (c *Client) ensureAuth(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	return c.Authenticate(ctx)
}

func (c *Client) getMembershipUserID(ctx context.Context) (int, error) {
	if c.membershipUserID != 0 {
		return c.membershipUserID, nil
	}
	var r struct {
		Data struct {
			MembershipUser struct {
				ID int `json:"id"`
			} `json:"membership_user"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "auth/user", nil, &r); err != nil {
		return 0, fmt.Errorf("fetch membership user: %w", err)
	}
	c.membershipUserID = r.Data.MembershipUser.ID
	return c.membershipUserID, nil
}

type timesResponse struct {
	Data []struct {
		StartsAt struct {
			Format24Hour string `json:"format_24_hour"`
		} `json:"starts_at"`
		EndsAt struct {
			Format24Hour string `json:"format_24_hour"`
		} `json:"ends_at"`
		Name     string `json:"name"`
		Location string `json:"location"`
		Spaces   int    `json:"spaces"`
		Price    struct {
			FormattedAmount string `json:"formatted_amount"`
		} `json:"price"`
		Duration int             `json:"duration"`
		Booking  json.RawMessage `json:"booking"`
	} `json:"data"`
}

// AvailableTimes lists the day's time windows for one venue/activity,
// excluding full windows and ones the account has already booked. The API
// returns them ordered by start time; that ordering is preserved.
func (c *Client) AvailableTimes(ctx context.Context, venue, activity string, date time.Time) ([]booking.TimeRange, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("activities/venue/%s/activity/%s/times", url.PathEscape(venue), url.PathEscape(activity))
	var r timesResponse
	if err := c.getJSON(ctx, path, url.Values{"date": {date.Format("2006-01-02")}}, &r); err != nil {
		return nil, err
	}
	out := make([]booking.TimeRange, 0, len(r.Data))
	for _, t := range r.Data {
		if t.Spaces <= 0 || !isNull(t.Booking) {
			continue
		}
		start, err := booking.ParseClock(t.StartsAt.Format24Hour)
		if err != nil {
			return nil, fmt.Errorf("bad start time in response: %w", err)
		}
		end, err := booking.ParseClock(t.EndsAt.Format24Hour)
		if err != nil {
			return nil, fmt.Errorf("bad end time in response: %w", err)
		}
		out = append(out, booking.TimeRange{
			Start:        start,
			End:          end,
			Name:         t.Name,
			Spaces:       t.Spaces,
			Price:        t.Price.FormattedAmount,
			DurationMins: t.Duration,
		})
	}
	return out, nil
}

type slotsResponse struct {
	Data []struct {
		ID       int `json:"id"`
		Location struct {
			ID   int    `json:"id"`
			Slug string `json:"slug"`
		} `json:"location"`
		PricingOptionID int             `json:"pricing_option_id"`
		RestrictionIDs  []int           `json:"restriction_ids"`
		CartType        string          `json:"cart_type"`
		Spaces          int             `json:"spaces"`
		Booking         json.RawMessage `json:"booking"`
	} `json:"data"`
}

// AvailableSlots lists the purchasable slots (individual courts or stations)
// for one exact time range.
func (c *Client) AvailableSlots(ctx context.Context, venue, activity string, date time.Time, start, end booking.ClockTime) ([]booking.Slot, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("activities/venue/%s/activity/%s/slots", url.PathEscape(venue), url.PathEscape(activity))
	q := url.Values{
		"date":       {date.Format("2006-01-02")},
		"start_time": {start.HHMM()},
		"end_time":   {end.HHMM()},
	}
	var r slotsResponse
	if err := c.getJSON(ctx, path, q, &r); err != nil {
		return nil, err
	}
	out := make([]booking.Slot, 0, len(r.Data))
	for _, s := range r.Data {
		if s.Spaces <= 0 || !isNull(s.Booking) {
			continue
		}
		out = append(out, booking.Slot{
			ID:              s.ID,
			LocationID:      s.Location.ID,
			PricingOptionID: s.PricingOptionID,
			RestrictionIDs:  s.RestrictionIDs,
			Name:            s.Location.Slug,
			CartType:        s.CartType,
		})
	}
	return out, nil
}

type cartItem struct {
	ActivityRestrictionIDs []int  `json:"activity_restriction_ids"`
	ApplyBenefit           bool   `json:"apply_benefit"`
	ID                     int    `json:"id"`
	PricingOptionID        int    `json:"pricing_option_id"`
	Type                   string `json:"type"`
}

// AddToCart puts the slots into a single cart with the membership benefit
// applied, returning the cart handle checkout needs.
func (c *Client) AddToCart(ctx context.Context, slots []booking.Slot) (booking.Cart, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return booking.Cart{}, err
	}
	muID, err := c.getMembershipUserID(ctx)
	if err != nil {
		return booking.Cart{}, err
	}
	items := make([]cartItem, len(slots))
	for i, s := range slots {
		items[i] = cartItem{
			ActivityRestrictionIDs: s.RestrictionIDs,
			ApplyBenefit:           true,
			ID:                     s.ID,
			PricingOptionID:        s.PricingOptionID,
			Type:                   s.CartType,
		}
	}
	body, err := json.Marshal(map[string]any{
		"items":              items,
		"membership_user_id": muID,
		"selected_user_id":   nil,
	})
	if err != nil {
		return booking.Cart{}, err
	}
	var r struct {
		Data struct {
			ID     int    `json:"id"`
			Total  int    `json:"total"`
			Source string `json:"source"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "activities/cart/add", body, &r); err != nil {
		return booking.Cart{}, err
	}
	return booking.Cart{ID: r.Data.ID, Amount: r.Data.Total, Source: r.Data.Source}, nil
}

// Checkout completes the cart. A non-zero cart total is covered from the
// account's credit balance before checkout; a zero total (benefit covered the
// whole cart) checks out with no payment.
func (c *Client) Checkout(ctx context.Context, cart booking.Cart) (string, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return "", err
	}
	payments := []map[string]any{}
	if cart.Amount > 0 {
		body, err := json.Marshal(map[string]any{
			"credits_to_reserve": []map[string]any{{"amount": cart.Amount, "type": "general"}},
			"cart_source":        cart.Source,
			"selected_user_id":   nil,
		})
		if err != nil {
			return "", err
		}
		if err := c.postJSON(ctx, "credits/apply", body, nil); err != nil {
			return "", fmt.Errorf("apply credits: %w", err)
		}
		payments = append(payments, map[string]any{"tender_type": "credit", "amount": cart.Amount})
	}

	body, err := json.Marshal(map[string]any{
		"completed_waivers": []any{},
		"payments":          payments,
		"selected_user_id":  nil,
		"source":            cart.Source,
		"terms":             []int{1},
	})
	if err != nil {
		return "", err
	}
	var r struct {
		CompleteOrderID json.Number `json:"complete_order_id"`
	}
	if err := c.postJSON(ctx, "checkout/complete", body, &r); err != nil {
		return "", err
	}
	return r.CompleteOrderID.String(), nil
}

// Booking is one of the account's own bookings, for display.
type Booking struct {
	ID        int
	Activity  string
	Venue     string
	Location  string
	Date      string
	Time      string
	Price     string
	Status    string
	CanCancel bool
}

// MyBookings lists the account's bookings. filter is "future", "past" or
// "all".
func (c *Client) MyBookings(ctx context.Context, filter string) ([]Booking, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return nil, err
	}
	var r struct {
		Data []struct {
			ID         int    `json:"id"`
			SimpleName string `json:"simple_name"`
			Venue      string `json:"venue"`
			Item       struct {
				Location struct {
					Name string `json:"name"`
				} `json:"location"`
			} `json:"item"`
			Date           string `json:"date"`
			Time           string `json:"time"`
			Price          string `json:"price"`
			Status         string `json:"status"`
			CanBeCancelled bool   `json:"can_be_cancelled"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "my-account/bookings", url.Values{"filter": {filter}}, &r); err != nil {
		return nil, err
	}
	out := make([]Booking, len(r.Data))
	for i, b := range r.Data {
		out[i] = Booking{
			ID:        b.ID,
			Activity:  b.SimpleName,
			Venue:     b.Venue,
			Location:  b.Item.Location.Name,
			Date:      b.Date,
			Time:      b.Time,
			Price:     b.Price,
			Status:    b.Status,
			CanCancel: b.CanBeCancelled,
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, path+encodeQuery(q), nil, true)
	if err != nil {
		return err
	}
	if err := checkStatus(status, path); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeJSON(body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	status, resp, err := c.do(ctx, http.MethodPost, path, body, true)
	if err != nil {
		return err
	}
	if err := checkStatus(status, path); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeJSON(resp, out)
}

func checkStatus(status int, path string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s (status=%d): %w", path, status, ErrAuthFailed)
	}
	if status >= 400 {
		return fmt.Errorf("%s failed (status=%d)", path, status)
	}
	return nil
}

func decodeJSON(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

// retryStatus lists the server errors worth retrying; anything else is
// returned to the caller immediately.
func retryStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

const maxTries = 5

// do performs one API request with bounded retry on transport errors and
// transient server errors, backing off 1s, 2s, 4s, 8s between tries.
func (c *Client) do(ctx context.Context, method, path string, body []byte, withAuth bool) (int, []byte, error) {
	var lastErr error
	for try := 0; try < maxTries; try++ {
		if try > 0 {
			backoff := time.Duration(1<<(try-1)) * time.Second
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", "en-GB,en;q=0.5")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://myaccount.better.org.uk")
		req.Header.Set("Referer", "https://myaccount.better.org.uk/")
		if withAuth && c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		res, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		b, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if retryStatus(res.StatusCode) {
			lastErr = fmt.Errorf("%s %s: status=%d", method, path, res.StatusCode)
			continue
		}
		return res.StatusCode, b, nil
	}
	return 0, nil, fmt.Errorf("%s %s: giving up after %d tries: %w", method, path, maxTries, lastErr)
}

func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
