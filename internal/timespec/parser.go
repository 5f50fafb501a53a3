package timespec

import (
	"fmt"
	"time"
)

// Parse reads a history bound relative to now. It accepts an age such as
// "30m" or "1h30m", meaning that long before now, or an absolute sample time
// in RFC3339 as printed by 'aqueduct history' ("2025-10-29T13:00:00.000Z").
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("time cannot be empty")
	}

	if t, err := time.Parse(time.RFC3339Nano, spec); err == nil {
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("age %q is negative", spec)
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("cannot read %q as a time: use an age like '30m' or a sample time like '2025-10-29T13:00:00.000Z'", spec)
}

// ParseRange parses the --since and --until flags into a time range.
// A zero time means "no bound" for that end of the range.
//
// Validates that since < until if both are specified.
func ParseRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	var sinceT, untilT time.Time
	var err error

	if since != "" {
		sinceT, err = Parse(since, now)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilT, err = Parse(until, now)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !sinceT.IsZero() && !untilT.IsZero() && !sinceT.Before(untilT) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}

	return sinceT, untilT, nil
}
