package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobsched/internal/config"
	"jobsched/internal/scheduling"
)

// define registers every enabled job of sc on s.
func define(s *scheduling.Schedule, sc config.ScheduleConfig, environment string) error {
	for i, jc := range sc.Jobs {
		if !jc.IsEnabled() {
			continue
		}
		if err := defineJob(s, sc, jc, environment); err != nil {
			return fmt.Errorf("schedule.jobs[%d]: %w", i, err)
		}
	}
	return s.Validate()
}

func defineJob(s *scheduling.Schedule, sc config.ScheduleConfig, jc config.JobConfig, environment string) error {
	var j *scheduling.ShellJob
	switch {
	case strings.TrimSpace(jc.Command) != "":
		j = s.Exec(jc.Command)
	case strings.TrimSpace(jc.Subcommand) != "":
		j = s.Command(jc.Subcommand)
	default:
		return fmt.Errorf("command or subcommand is required")
	}

	if d := strings.TrimSpace(jc.Description); d != "" {
		j.Description(d)
	}
	if c := strings.TrimSpace(jc.Cron); c != "" {
		j.Cron(c)
	}
	for _, f := range jc.Frequency {
		if err := applyFrequency(j, f); err != nil {
			return err
		}
	}
	if tz := strings.TrimSpace(jc.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		j.Timezone(loc)
	}

	if u := strings.TrimSpace(jc.User); u != "" {
		j.User(u)
	}
	if d := strings.TrimSpace(jc.Dir); d != "" {
		j.In(d)
	}
	if out := strings.TrimSpace(jc.Output); out != "" {
		if jc.AppendOutput {
			j.AppendOutputTo(out)
		} else {
			j.SendOutputTo(out)
		}
	}
	if jc.Background {
		j.RunInBackground()
	}
	j.OmitErrors(jc.OmitErrors || sc.OmitErrors)

	if len(jc.Environments) > 0 {
		j.WhenBool(matchEnvironment(environment, jc.Environments))
	}
	if u := strings.TrimSpace(jc.PingBefore); u != "" {
		j.PingBefore(u)
	}
	if u := strings.TrimSpace(jc.ThenPing); u != "" {
		j.ThenPing(u)
	}
	if jc.NotifyOutput {
		j.NotifyOutputTo()
	}
	switch {
	case jc.OnOneServer:
		j.OnOneServer()
	case jc.WithoutOverlapping:
		j.WithoutOverlapping()
	}
	return nil
}

func matchEnvironment(current string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), current) {
			return true
		}
	}
	return false
}

// applyFrequency applies one frequency entry such as "dailyAt 13:00" or
// "weekly_on friday 8:30". Names ignore case, "_" and "-". twiceDaily and
// twiceMonthly default to 1,13 and 1,16; a missing time of day is midnight.
func applyFrequency(j *scheduling.ShellJob, entry string) error {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return fmt.Errorf("frequency: empty entry")
	}
	name := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(fields[0]))
	args := fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("frequency %q: %s takes %d argument(s)", entry, fields[0], n)
		}
		return nil
	}
	ints := func() ([]int, error) {
		var out []int
		for _, a := range args {
			for _, p := range strings.Split(a, ",") {
				if p == "" {
					continue
				}
				n, err := strconv.Atoi(p)
				if err != nil {
					return nil, fmt.Errorf("frequency %q: %q is not a number", entry, p)
				}
				out = append(out, n)
			}
		}
		return out, nil
	}

	switch name {
	case "everyminute":
		j.EveryMinute()
	case "everyfiveminutes":
		j.EveryFiveMinutes()
	case "everytenminutes":
		j.EveryTenMinutes()
	case "everyfifteenminutes":
		j.EveryFifteenMinutes()
	case "everythirtyminutes":
		j.EveryThirtyMinutes()
	case "everynminutes":
		if err := want(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("frequency %q: %q is not a number", entry, args[0])
		}
		j.EveryNMinutes(n)
	case "hourly":
		j.Hourly()
	case "hourlyat":
		minutes, err := ints()
		if err != nil {
			return err
		}
		j.HourlyAt(minutes...)
	case "daily":
		j.Daily()
	case "dailyat", "at":
		if err := want(1); err != nil {
			return err
		}
		j.DailyAt(args[0])
	case "twicedaily":
		hours, err := ints()
		if err != nil {
			return err
		}
		if len(hours) == 0 {
			hours = []int{1, 13}
		}
		if len(hours) != 2 {
			return fmt.Errorf("frequency %q: twiceDaily takes two hours", entry)
		}
		j.TwiceDaily(hours[0], hours[1])
	case "weekly":
		j.Weekly()
	case "weeklyon":
		if len(args) == 1 {
			args = append(args, "0:0")
		}
		if err := want(2); err != nil {
			return err
		}
		day, err := parseWeekday(args[0])
		if err != nil {
			return fmt.Errorf("frequency %q: %w", entry, err)
		}
		j.WeeklyOn(day, args[1])
	case "monthly":
		j.Monthly()
	case "monthlyon":
		if len(args) == 1 {
			args = append(args, "0:0")
		}
		if err := want(2); err != nil {
			return err
		}
		day, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("frequency %q: %q is not a day of month", entry, args[0])
		}
		j.MonthlyOn(day, args[1])
	case "twicemonthly":
		days, err := ints()
		if err != nil {
			return err
		}
		if len(days) == 0 {
			days = []int{1, 16}
		}
		if len(days) != 2 {
			return fmt.Errorf("frequency %q: twiceMonthly takes two days", entry)
		}
		j.TwiceMonthly(days[0], days[1])
	case "quarterly":
		j.Quarterly()
	case "yearly":
		j.Yearly()
	case "weekdays":
		j.Weekdays()
	case "weekends":
		j.Weekends()
	case "days":
		var days []time.Weekday
		for _, a := range args {
			for _, p := range strings.Split(a, ",") {
				if p == "" {
					continue
				}
				d, err := parseWeekday(p)
				if err != nil {
					return fmt.Errorf("frequency %q: %w", entry, err)
				}
				days = append(days, d)
			}
		}
		j.Days(days...)
	default:
		// "mondays" .. "sundays"
		if strings.HasSuffix(name, "s") {
			if d, err := parseWeekday(strings.TrimSuffix(name, "s")); err == nil && len(args) == 0 {
				j.Days(d)
				return nil
			}
		}
		return fmt.Errorf("frequency %q: unknown frequency %q", entry, fields[0])
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseWeekday accepts English names, their three-letter forms, and 0-6.
func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
