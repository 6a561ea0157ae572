package booking

import (
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a time of day with second resolution, stored as seconds since
// midnight. The Better API reports activity times at minute resolution, but
// upstream rounding has produced second-level values before, and adjacency
// matching must treat those as distinct.
type ClockTime int

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return ClockTime(h*3600 + m*60 + sec), nil
}

func (c ClockTime) String() string {
	h := int(c) / 3600
	m := int(c) % 3600 / 60
	s := int(c) % 60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// HHMM renders the time the way the Better API expects query parameters,
// dropping any seconds.
func (c ClockTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", int(c)/3600, int(c)%3600/60)
}
