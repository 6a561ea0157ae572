package booking

// FilterWindow returns the ranges starting at or after min and, when max is
// non-nil, ending at or before max. Both bounds are inclusive. The input is
// expected to be ordered by start time as the availability query returns it;
// the filter preserves order and never re-sorts.
func FilterWindow(times []TimeRange, min ClockTime, max *ClockTime) []TimeRange {
	out := make([]TimeRange, 0, len(times))
	for _, t := range times {
		if t.Start < min {
			continue
		}
		if max != nil && t.End > *max {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FindConsecutiveRun scans left to right for the first run of n ranges where
// each range ends exactly when the next starts, and returns its start index.
// Adjacency is strict equality: a gap of even one second breaks the run.
// Returns false when no such run exists, including when len(times) < n.
func FindConsecutiveRun(times []TimeRange, n int) (int, bool) {
	if n < 1 || len(times) < n {
		return 0, false
	}
	for i := 0; i+n <= len(times); i++ {
		ok := true
		for j := i; j < i+n-1; j++ {
			if times[j].End != times[j+1].Start {
				ok = false
				break
			}
		}
		if ok {
			return i, true
		}
	}
	return 0, false
}
