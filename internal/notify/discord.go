package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tdopierre/book-better-activities/internal/booking"
)

const (
	colorGreen = 0x00FF00
	colorRed   = 0xFF0000

	// maxReportedErrors caps the failure summary so a job with a long
	// attempt list cannot produce an oversized webhook payload.
	maxReportedErrors = 5
)

// DiscordWebhook posts terminal job events to a Discord webhook. Delivery is
// best effort: failures are logged and swallowed so a flaky webhook never
// fails a booking job.
type DiscordWebhook struct {
	URL string
	Log *slog.Logger

	// HTTPClient overrides the default 10s-timeout client, for tests.
	HTTPClient *http.Client
}

var _ booking.Notifier = (*DiscordWebhook)(nil)

func (d *DiscordWebhook) BookingSucceeded(ctx context.Context, job string, attemptNum int, orderID string) {
	msg := fmt.Sprintf("**Booking Successful!**\n\n**Job:** %s\n**Attempt:** %d\n**Order ID:** %s",
		job, attemptNum, orderID)
	d.post(ctx, msg, colorGreen)
}

func (d *DiscordWebhook) BookingFailed(ctx context.Context, job string, totalAttempts int, failures []booking.AttemptFailure) {
	var details []string
	for _, f := range failures {
		if len(details) == maxReportedErrors {
			break
		}
		details = append(details, fmt.Sprintf("- Attempt %d: %v", f.Index+1, f.Err))
	}
	if rest := len(failures) - maxReportedErrors; rest > 0 {
		details = append(details, fmt.Sprintf("... and %d more error(s)", rest))
	}
	msg := fmt.Sprintf("**Booking Failed!**\n\n**Job:** %s\n**Total Attempts:** %d\n\n**Errors:**\n%s",
		job, totalAttempts, strings.Join(details, "\n"))
	d.post(ctx, msg, colorRed)
}

func (d *DiscordWebhook) post(ctx context.Context, message string, color int) {
	if d.URL == "" {
		return
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	payload, err := json.Marshal(map[string]any{
		"embeds": []map[string]any{{
			"description": message,
			"color":       color,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		log.Error("could not build webhook payload", "error", err)
		return
	}

	hc := d.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		log.Error("could not build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := hc.Do(req)
	if err != nil {
		log.Error("discord notification failed", "error", err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		log.Error("discord notification rejected", "status", res.StatusCode)
		return
	}
	log.Info("discord notification sent")
}
