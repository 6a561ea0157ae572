package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Trigger holds the five cron fields in the runner's own convention, where
// day-of-week 0 is Monday through 6 Sunday (ISO weekday order). Config files
// use conventional cron numbering with 0 as Sunday; ParseCronExpression does
// the renumbering.
type Trigger struct {
	Minute    string
	Hour      string
	Day       string
	Month     string
	DayOfWeek string
}

// cronToTrigger maps a conventional cron weekday digit (0=Sunday) to the
// trigger's Monday-first digit. Cron also accepts 7 for Sunday.
var cronToTrigger = map[int]int{0: 6, 1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5, 7: 6}

// ParseCronExpression parses a five-field whitespace-separated cron
// expression into a Trigger, translating the day-of-week field. Anything
// other than exactly five fields is a format error.
func ParseCronExpression(expr string) (Trigger, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Trigger{}, fmt.Errorf("invalid cron expression %q: want 5 fields, got %d", expr, len(parts))
	}
	dow, err := translateDayOfWeek(parts[4])
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return Trigger{
		Minute:    parts[0],
		Hour:      parts[1],
		Day:       parts[2],
		Month:     parts[3],
		DayOfWeek: dow,
	}, nil
}

// translateDayOfWeek renumbers one day-of-week field from cron convention to
// trigger convention. Ranges ("a-b") and lists ("a,b,c") are translated
// element-wise with their structure preserved; "*" passes through.
func translateDayOfWeek(field string) (string, error) {
	single := func(v string) (string, error) {
		if v == "*" {
			return v, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("bad day-of-week %q", v)
		}
		mapped, ok := cronToTrigger[n]
		if !ok {
			return "", fmt.Errorf("day-of-week %d out of range", n)
		}
		return strconv.Itoa(mapped), nil
	}

	switch {
	case strings.Contains(field, "-"):
		bounds := strings.SplitN(field, "-", 2)
		lo, err := single(bounds[0])
		if err != nil {
			return "", err
		}
		hi, err := single(bounds[1])
		if err != nil {
			return "", err
		}
		return lo + "-" + hi, nil
	case strings.Contains(field, ","):
		elems := strings.Split(field, ",")
		out := make([]string, len(elems))
		for i, e := range elems {
			v, err := single(e)
			if err != nil {
				return "", err
			}
			out[i] = v
		}
		return strings.Join(out, ","), nil
	default:
		return single(field)
	}
}

// ResolveBookingDate derives the calendar date a firing books for: the fire
// time's date plus the job's days-ahead offset. The result is midnight in
// nextFire's location.
func ResolveBookingDate(nextFire time.Time, daysAhead int) time.Time {
	y, m, d := nextFire.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, nextFire.Location()).AddDate(0, 0, daysAhead)
}
