package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "jobsched/pkg/logx"
)

// ParseDurationField parses an optional, non-negative Go duration string.
// An empty value yields 0. path names the field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

var (
	mutexDrivers   = []string{"", "memory", "file", "sqlite", "postgres", "redis"}
	storageDrivers = []string{"", "none", "file", "sqlite"}
	runnerDrivers  = []string{"", "exec", "systemd"}
)

// DistributedMutex reports whether driver can coordinate several hosts.
func DistributedMutex(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "redis":
		return true
	default:
		return false
	}
}

// Validate checks everything that can be checked without touching the
// outside world. All problems are reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}

	if !oneOf(cfg.Mutex.Driver, mutexDrivers) {
		add("mutex.driver: unknown driver %q", cfg.Mutex.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Mutex.Driver)) {
	case "file", "sqlite":
		if strings.TrimSpace(cfg.Mutex.Path) == "" {
			add("mutex.path: required for driver %q", cfg.Mutex.Driver)
		}
	case "postgres":
		if strings.TrimSpace(cfg.Mutex.DSN) == "" {
			add("mutex.dsn: required for driver postgres")
		}
	case "redis":
		if strings.TrimSpace(cfg.Mutex.Addr) == "" {
			add("mutex.addr: required for driver redis")
		}
	}
	if _, err := ParseDurationField("mutex.expire_after", cfg.Mutex.ExpireAfter); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("mutex.busy_timeout", cfg.Mutex.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if st := cfg.Storage; st != nil {
		if !oneOf(st.Driver, storageDrivers) {
			add("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if n := cfg.Notifier; n != nil {
		if _, err := ParseDurationField("notifier.ping_timeout", n.PingTimeout); err != nil {
			errs = append(errs, err)
		}
		if tg := n.Telegram; tg != nil {
			if strings.TrimSpace(tg.Token) == "" {
				add("notifier.telegram.token: required")
			}
			if tg.ChatID == 0 {
				add("notifier.telegram.chat_id: required")
			}
			if tg.RatePerSec < 0 {
				add("notifier.telegram.rate_per_sec: must be >= 0")
			}
			if _, err := ParseDurationField("notifier.telegram.timeout", tg.Timeout); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if !oneOf(cfg.Runner.Driver, runnerDrivers) {
		add("runner.driver: unknown driver %q", cfg.Runner.Driver)
	}

	if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("schedule.timezone: %v", err)
		}
	}
	for i, j := range cfg.Schedule.Jobs {
		path := fmt.Sprintf("schedule.jobs[%d]", i)
		hasCmd := strings.TrimSpace(j.Command) != ""
		hasSub := strings.TrimSpace(j.Subcommand) != ""
		if hasCmd == hasSub {
			add("%s: exactly one of command or subcommand is required", path)
		}
		if (j.WithoutOverlapping || j.OnOneServer) && strings.TrimSpace(j.Description) == "" {
			add("%s: description is required to prevent overlapping", path)
		}
		if j.OnOneServer && !DistributedMutex(cfg.Mutex.Driver) {
			add("%s: on_one_server needs a distributed mutex driver (postgres or redis)", path)
		}
		if j.NotifyOutput && strings.TrimSpace(j.Output) == "" {
			add("%s: notify_output requires output", path)
		}
		if tz := strings.TrimSpace(j.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add("%s.timezone: %v", path, err)
			}
		}
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
