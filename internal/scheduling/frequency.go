package scheduling

import (
	"strconv"
	"strings"
	"time"

	"jobsched/internal/cronexpr"
)

// Frequency helpers. Each one rewrites only the fields it names, so the last
// call wins on a shared field and calls on disjoint fields commute.
// Invalid arguments are recorded on the job and leave the expression as it was.

// Cron replaces the whole expression.
func (b *base[J]) Cron(expr string) J {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		b.record(argumentError("cron: %v", err))
		return b.self
	}
	b.expr = e
	return b.self
}

func (b *base[J]) EveryMinute() J { return b.splice(set{cronexpr.Minute, "*"}) }

func (b *base[J]) EveryNMinutes(n int) J {
	if n < 1 || n > 59 {
		b.record(argumentError("every n minutes: %d not in 1..59", n))
		return b.self
	}
	return b.splice(set{cronexpr.Minute, "*/" + strconv.Itoa(n)})
}

func (b *base[J]) EveryFiveMinutes() J    { return b.EveryNMinutes(5) }
func (b *base[J]) EveryTenMinutes() J     { return b.EveryNMinutes(10) }
func (b *base[J]) EveryFifteenMinutes() J { return b.EveryNMinutes(15) }
func (b *base[J]) EveryThirtyMinutes() J  { return b.splice(set{cronexpr.Minute, "0,30"}) }

func (b *base[J]) Hourly() J { return b.splice(set{cronexpr.Minute, "0"}) }

// HourlyAt runs at the given minutes past every hour.
func (b *base[J]) HourlyAt(minutes ...int) J {
	if len(minutes) == 0 {
		b.record(argumentError("hourly at: no minute given"))
		return b.self
	}
	return b.splice(set{cronexpr.Minute, joinInts(minutes)})
}

func (b *base[J]) Daily() J {
	return b.splice(set{cronexpr.Minute, "0"}, set{cronexpr.Hour, "0"})
}

// DailyAt takes "H" or "H:M".
func (b *base[J]) DailyAt(at string) J {
	return b.atClock(at)
}

// At is DailyAt.
func (b *base[J]) At(at string) J { return b.DailyAt(at) }

func (b *base[J]) TwiceDaily(first, second int) J {
	return b.splice(set{cronexpr.Minute, "0"}, set{cronexpr.Hour, joinInts([]int{first, second})})
}

func (b *base[J]) Weekly() J {
	return b.splice(set{cronexpr.Minute, "0"}, set{cronexpr.Hour, "0"}, set{cronexpr.DayOfWeek, "0"})
}

func (b *base[J]) WeeklyOn(day time.Weekday, at string) J {
	return b.atClock(at, set{cronexpr.DayOfWeek, strconv.Itoa(int(day))})
}

func (b *base[J]) Monthly() J {
	return b.splice(set{cronexpr.Minute, "0"}, set{cronexpr.Hour, "0"}, set{cronexpr.DayOfMonth, "1"})
}

func (b *base[J]) MonthlyOn(day int, at string) J {
	return b.atClock(at, set{cronexpr.DayOfMonth, strconv.Itoa(day)})
}

func (b *base[J]) TwiceMonthly(first, second int) J {
	return b.splice(
		set{cronexpr.Minute, "0"},
		set{cronexpr.Hour, "0"},
		set{cronexpr.DayOfMonth, joinInts([]int{first, second})},
	)
}

func (b *base[J]) Quarterly() J {
	return b.splice(
		set{cronexpr.Minute, "0"},
		set{cronexpr.Hour, "0"},
		set{cronexpr.DayOfMonth, "1"},
		set{cronexpr.Month, "1-12/3"},
	)
}

func (b *base[J]) Yearly() J {
	return b.splice(
		set{cronexpr.Minute, "0"},
		set{cronexpr.Hour, "0"},
		set{cronexpr.DayOfMonth, "1"},
		set{cronexpr.Month, "1"},
	)
}

func (b *base[J]) Weekdays() J { return b.splice(set{cronexpr.DayOfWeek, "1-5"}) }
func (b *base[J]) Weekends() J { return b.splice(set{cronexpr.DayOfWeek, "0,6"}) }

// Days limits the job to the given weekdays (Sunday is 0).
func (b *base[J]) Days(days ...time.Weekday) J {
	if len(days) == 0 {
		b.record(argumentError("days: no day given"))
		return b.self
	}
	ints := make([]int, len(days))
	for i, d := range days {
		ints[i] = int(d)
	}
	return b.splice(set{cronexpr.DayOfWeek, joinInts(ints)})
}

func (b *base[J]) Mondays() J    { return b.Days(time.Monday) }
func (b *base[J]) Tuesdays() J   { return b.Days(time.Tuesday) }
func (b *base[J]) Wednesdays() J { return b.Days(time.Wednesday) }
func (b *base[J]) Thursdays() J  { return b.Days(time.Thursday) }
func (b *base[J]) Fridays() J    { return b.Days(time.Friday) }
func (b *base[J]) Saturdays() J  { return b.Days(time.Saturday) }
func (b *base[J]) Sundays() J    { return b.Days(time.Sunday) }

// set is one field assignment.
type set struct {
	pos   int
	value string
}

// splice applies every assignment or none of them.
func (b *base[J]) splice(sets ...set) J {
	e := b.expr
	for _, s := range sets {
		next, err := e.Splice(s.pos, s.value)
		if err != nil {
			b.record(argumentError("%v", err))
			return b.self
		}
		e = next
	}
	b.expr = e
	return b.self
}

func (b *base[J]) atClock(at string, extra ...set) J {
	h, m, err := parseClock(at)
	if err != nil {
		b.record(err)
		return b.self
	}
	sets := append([]set{{cronexpr.Hour, strconv.Itoa(h)}, {cronexpr.Minute, strconv.Itoa(m)}}, extra...)
	return b.splice(sets...)
}

func parseClock(at string) (hour, minute int, err error) {
	h, m, hasMinute := strings.Cut(strings.TrimSpace(at), ":")
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, argumentError("time %q: hour must be 0..23", at)
	}
	if !hasMinute {
		return hour, 0, nil
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, argumentError("time %q: minute must be 0..59", at)
	}
	return hour, minute, nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
