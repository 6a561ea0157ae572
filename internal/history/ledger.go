package history

import (
	"context"
	"fmt"
	"time"

	"github.com/tdopierre/book-better-activities/internal/booking"
	"github.com/tdopierre/book-better-activities/internal/db"
)

// Ledger persists one row per job firing plus one row per failed attempt,
// purely for diagnostics. Bookings themselves live on the provider side.
type Ledger struct {
	db *db.DB
}

func NewLedger(d *db.DB) *Ledger {
	return &Ledger{db: d}
}

var _ booking.Recorder = (*Ledger)(nil)

func (l *Ledger) Record(ctx context.Context, rec booking.RunRecord) error {
	var runID int64
	err := l.db.QueryRow(ctx, `
INSERT INTO job_runs(job_name, activity_date, succeeded, order_id)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING id`,
		rec.Job, rec.Date, rec.OrderID != "", rec.OrderID,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}

	for _, f := range rec.Failures {
		if err := l.db.Exec(ctx, `
INSERT INTO attempt_results(run_id, attempt_index, error)
VALUES ($1, $2, $3)`,
			runID, f.Index, f.Err.Error(),
		); err != nil {
			return fmt.Errorf("insert attempt result: %w", err)
		}
	}
	return nil
}

// Run is a summarized past firing, newest first from RecentRuns.
type Run struct {
	ID           int64
	Job          string
	ActivityDate time.Time
	Succeeded    bool
	OrderID      string
	FailedTries  int
	CreatedAt    time.Time
}

func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.Query(ctx, `
SELECT r.id, r.job_name, r.activity_date, r.succeeded, COALESCE(r.order_id, ''),
       (SELECT count(*) FROM attempt_results a WHERE a.run_id = r.id), r.created_at
FROM job_runs r
ORDER BY r.created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Job, &r.ActivityDate, &r.Succeeded, &r.OrderID, &r.FailedTries, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
