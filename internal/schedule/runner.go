package schedule

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

// Runner drives job firings with a cron scheduler. One firing invokes its
// callback synchronously in the scheduler's goroutine for that entry;
// overlapping firings of the same job are skipped rather than queued.
type Runner struct {
	c   *cron.Cron
	loc *time.Location
	log *slog.Logger
}

func NewRunner(loc *time.Location, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	cl := cronLogger{log: log}
	return &Runner{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc: loc,
		log: log,
	}
}

// AddJob registers a trigger. At each fire the callback receives the booking
// date for that firing (fire date plus daysAhead). The returned time is the
// next fire computed from now, for startup logging.
func (r *Runner) AddJob(name string, trig Trigger, daysAhead int, fire func(date time.Time)) (time.Time, error) {
	spec := renderCronSpec(trig)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	r.c.Schedule(sched, cron.FuncJob(func() {
		date := ResolveBookingDate(time.Now().In(r.loc), daysAhead)
		r.log.Info("job fired", "job", name, "booking_date", date.Format("2006-01-02"))
		fire(date)
	}))
	return sched.Next(time.Now().In(r.loc)), nil
}

func (r *Runner) Start() { r.c.Start() }

// Stop halts scheduling and waits for any running firing to finish.
func (r *Runner) Stop() {
	ctx := r.c.Stop()
	<-ctx.Done()
}

// renderCronSpec rebuilds a cron spec string from a Trigger for the cron
// library, which numbers weekdays Sunday-first. The day-of-week mapping here
// is the inverse of the one applied by ParseCronExpression.
func renderCronSpec(t Trigger) string {
	return strings.Join([]string{t.Minute, t.Hour, t.Day, t.Month, triggerDowToCron(t.DayOfWeek)}, " ")
}

func triggerDowToCron(field string) string {
	single := func(v string) string {
		n, err := strconv.Atoi(v)
		if err != nil {
			return v
		}
		return strconv.Itoa((n + 1) % 7)
	}
	switch {
	case strings.Contains(field, "-"):
		bounds := strings.SplitN(field, "-", 2)
		return single(bounds[0]) + "-" + single(bounds[1])
	case strings.Contains(field, ","):
		elems := strings.Split(field, ",")
		for i, e := range elems {
			elems[i] = single(e)
		}
		return strings.Join(elems, ",")
	default:
		return single(field)
	}
}

// cronLogger adapts slog to the cron library's logger interface.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
