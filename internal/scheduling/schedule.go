package scheduling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobsched/internal/mutex"
	"jobsched/internal/notify"
	"jobsched/internal/process"
	logx "jobsched/pkg/logx"
)

// Options configures a Schedule. Zero values get defaults: a process-local
// mutex, the host dialect, an os/exec runner, no notifications.
type Options struct {
	// EntryPoint is the program that shell jobs re-invoke for subcommands
	// and completion callbacks.
	EntryPoint string
	// FallbackEntryPoint is used when EntryPoint is empty or missing.
	FallbackEntryPoint string
	// Interpreter, when set, is placed before the entry point (a script host).
	Interpreter string
	// EntryArgs follow the entry point, before the subcommand.
	EntryArgs []string

	Mutex    mutex.Mutex
	Location *time.Location
	Dialect  Dialect
	Runner   process.Runner
	Notifier notify.Notifier
	Pinger   notify.Pinger
	Logger   logx.Logger
}

// Schedule owns the registered jobs and what they share: the mutex, the
// runner and the entry point.
type Schedule struct {
	env        *env
	entryPoint string
	prefix     string
	jobs       []Job
}

func New(opts Options) (*Schedule, error) {
	entry, err := resolveEntryPoint(opts.EntryPoint, opts.FallbackEntryPoint)
	if err != nil {
		return nil, err
	}

	e := standaloneEnv()
	if opts.Mutex != nil {
		e.mutex = opts.Mutex
	} else {
		e.mutex = mutex.NewMemory(0)
	}
	if opts.Location != nil {
		e.location = opts.Location
	}
	if opts.Dialect != nil {
		e.dialect = opts.Dialect
	}
	if opts.Runner != nil {
		e.runner = opts.Runner
	}
	if opts.Notifier != nil {
		e.notifier = opts.Notifier
	}
	if opts.Pinger != nil {
		e.pinger = opts.Pinger
	}
	if !opts.Logger.IsZero() {
		e.log = opts.Logger
	}

	parts := make([]string, 0, len(opts.EntryArgs)+2)
	if in := strings.TrimSpace(opts.Interpreter); in != "" {
		parts = append(parts, in)
	}
	parts = append(parts, shellWord(entry))
	for _, a := range opts.EntryArgs {
		parts = append(parts, shellWord(a))
	}
	prefix := strings.Join(parts, " ")
	e.finish = prefix + " finish"

	return &Schedule{env: e, entryPoint: entry, prefix: prefix}, nil
}

func resolveEntryPoint(path, fallback string) (string, error) {
	for _, p := range []string{path, fallback} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
	}
	if strings.TrimSpace(path) == "" {
		return "", configError("no entry point configured")
	}
	return "", configError("entry point %q does not exist and no fallback is available", path)
}

func shellWord(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// EntryPoint is the absolute path of the program jobs call back into.
func (s *Schedule) EntryPoint() string { return s.entryPoint }

// FinishCommand is the command line prefix of completion callbacks.
func (s *Schedule) FinishCommand() string { return s.env.finish }

func (s *Schedule) Mutex() mutex.Mutex { return s.env.mutex }

func (s *Schedule) Location() *time.Location { return s.env.location }

// Call registers a CallbackJob.
func (s *Schedule) Call(key string, fn Callback, params ...any) (*CallbackJob, error) {
	j, err := NewCallbackJob(key, fn, params...)
	if err != nil {
		return nil, err
	}
	s.bind(j)
	return j, nil
}

// Exec registers a ShellJob for command.
func (s *Schedule) Exec(command string) *ShellJob {
	j := NewShellJob(command)
	s.bind(j)
	return j
}

// Command registers a ShellJob that runs subcommand of this program.
func (s *Schedule) Command(subcommand string) *ShellJob {
	return s.Exec(s.prefix + " " + strings.TrimSpace(subcommand))
}

// Add registers a job built elsewhere. A job with recorded builder errors,
// or whose overlap guard the schedule's mutex cannot serve, is rejected.
func (s *Schedule) Add(job Job) error {
	if job == nil {
		return argumentError("add: nil job")
	}
	for _, existing := range s.jobs {
		if existing == job {
			return argumentError("add: job %q is already registered", job.SummaryForDisplay())
		}
	}
	c := job.core()
	c.env = s.env
	if c.guard != nil {
		c.record(c.guard.checkMutex(c))
	}
	if err := c.Err(); err != nil {
		return fmt.Errorf("job %q: %w", job.SummaryForDisplay(), err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Schedule) bind(job Job) {
	job.core().env = s.env
	s.jobs = append(s.jobs, job)
}

// Jobs returns the registered jobs in registration order.
func (s *Schedule) Jobs() []Job {
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// DueJobs returns the jobs whose expression fires in the minute of now, in
// registration order. Filters are not evaluated here.
func (s *Schedule) DueJobs(now time.Time) []Job {
	var due []Job
	for _, j := range s.jobs {
		if j.IsDue(now) {
			due = append(due, j)
		}
	}
	return due
}

// Find returns the job with the given id.
func (s *Schedule) Find(id string) (Job, bool) {
	for _, j := range s.jobs {
		if j.ID() == id {
			return j, true
		}
	}
	return nil, false
}

// Validate joins the builder errors of every registered job.
func (s *Schedule) Validate() error {
	var errs []error
	for _, j := range s.jobs {
		if err := j.Err(); err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", j.SummaryForDisplay(), err))
		}
	}
	return errors.Join(errs...)
}
