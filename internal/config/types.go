package config

// Config is the whole jobsched configuration file.
//
// Optional sections are pointers so "omitted" can be told apart from an
// explicit zero value.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Mutex    MutexConfig     `json:"mutex"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Runner   RunnerConfig    `json:"runner"`
	Schedule ScheduleConfig  `json:"schedule"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Journal LoggingJournal `json:"journal"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingJournal struct {
	Enabled    bool   `json:"enabled"`
	Identifier string `json:"identifier,omitempty"`
}

// MutexConfig selects the backend that prevents overlapping runs.
//
// Drivers:
//   - "memory" (default): one process only; useful for the work loop and tests
//   - "file": lock markers under Path; one host
//   - "sqlite": a lock table in the database at Path; one host
//   - "postgres": a lock table reached through DSN; many hosts
//   - "redis": SET NX keys on Addr; many hosts
//
// ExpireAfter is a Go duration string. "0s" (the default) means a lock is held
// until it is released, however long that takes.
type MutexConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	Addr        string `json:"addr,omitempty"`
	Password    string `json:"password,omitempty"`
	DB          int    `json:"db,omitempty"`
	ExpireAfter string `json:"expire_after,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// StorageConfig controls the optional run history.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./jobsched_history" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifierConfig wires the delivery of job output and the HTTP pings.
type NotifierConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	// PingTimeout bounds ping_before/then_ping requests. Default "10s".
	PingTimeout string `json:"ping_timeout,omitempty"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// Timeout is a Go duration string for the Bot API client. Default "10s".
	Timeout string `json:"timeout,omitempty"`
}

// RunnerConfig selects how shell commands are executed.
//
// "exec" (default) runs commands as children of the scheduler. "systemd" runs
// background commands as transient units so they survive the scheduler process
// and its cgroup; foreground commands still run through exec.
type RunnerConfig struct {
	Driver     string `json:"driver"`
	UnitPrefix string `json:"unit_prefix,omitempty"`
}

// ScheduleConfig describes the jobs and the process-wide scheduling knobs.
type ScheduleConfig struct {
	Timezone string `json:"timezone,omitempty"`

	// EntryPoint is the path of the executable the finish callback and
	// subcommand jobs invoke. Defaults to the running executable.
	EntryPoint  string   `json:"entry_point,omitempty"`
	Interpreter string   `json:"interpreter,omitempty"`
	EntryArgs   []string `json:"entry_args,omitempty"`

	// Environment is matched against JobConfig.Environments. APP_ENV wins when set.
	Environment string `json:"environment,omitempty"`

	Verbose                            *bool `json:"verbose,omitempty"`
	OmitErrors                         bool  `json:"omit_errors,omitempty"`
	RunConcurrentShellJobsInBackground bool  `json:"run_concurrent_shell_jobs_in_background,omitempty"`

	Jobs []JobConfig `json:"jobs"`
}

// JobConfig declares one scheduled job.
//
// Exactly one of Command (raw shell) or Subcommand (arguments appended to the
// entry point) is required. Frequency entries are applied in order, e.g.
// ["weekdays", "dailyAt 13:00"]. Cron, when set, is applied first.
type JobConfig struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	Description string   `json:"description,omitempty"`
	Command     string   `json:"command,omitempty"`
	Subcommand  string   `json:"subcommand,omitempty"`
	Cron        string   `json:"cron,omitempty"`
	Frequency   []string `json:"frequency,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`

	User         string `json:"user,omitempty"`
	Dir          string `json:"dir,omitempty"`
	Output       string `json:"output,omitempty"`
	AppendOutput bool   `json:"append_output,omitempty"`
	Background   bool   `json:"background,omitempty"`

	WithoutOverlapping bool `json:"without_overlapping,omitempty"`
	OnOneServer        bool `json:"on_one_server,omitempty"`
	OmitErrors         bool `json:"omit_errors,omitempty"`

	Environments []string `json:"environments,omitempty"`

	PingBefore   string `json:"ping_before,omitempty"`
	ThenPing     string `json:"then_ping,omitempty"`
	NotifyOutput bool   `json:"notify_output,omitempty"`
}

// IsEnabled treats an omitted "enabled" as true.
func (j JobConfig) IsEnabled() bool { return j.Enabled == nil || *j.Enabled }

// IsVerbose treats an omitted "verbose" as true.
func (s ScheduleConfig) IsVerbose() bool { return s.Verbose == nil || *s.Verbose }
