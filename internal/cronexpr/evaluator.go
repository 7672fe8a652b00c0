package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Five fields only. Seconds and descriptors are rejected so that every
// expression can be spliced position by position.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// IsDue reports whether e fires during the minute containing at.
// The wall clock of at is used, so callers convert to the job timezone first.
func IsDue(e Expression, at time.Time) (bool, error) {
	sched, err := parser.Parse(e.String())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	// Truncate works on absolute time, which is off the wall-clock minute in
	// zones with a seconds offset.
	minute := time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), 0, 0, at.Location())
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

// Next returns up to n fire times strictly after from, in from's location.
func Next(e Expression, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	sched, err := parser.Parse(e.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
