package scheduling

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"jobsched/internal/notify"
	"jobsched/internal/process"
	logx "jobsched/pkg/logx"
)

// unboundFinish stands in for the completion callback of a job that has not
// been added to a schedule. Such a job can be displayed but not detached.
const unboundFinish = "jobsched finish"

// ShellJob runs a command line through the platform shell.
type ShellJob struct {
	base[*ShellJob]

	command      string
	user         string
	dir          string
	output       string
	appendOutput bool
	background   bool
	dialect      Dialect

	exitCode *int
}

func NewShellJob(command string) *ShellJob {
	j := &ShellJob{command: command}
	j.jobCore = newJobCore()
	j.self = j
	if strings.TrimSpace(command) == "" {
		j.record(argumentError("shell job: empty command"))
	}
	return j
}

// Command returns the command as given, before any decoration.
func (j *ShellJob) Command() string { return j.command }

// User runs the command through sudo as name. Ignored on Windows.
func (j *ShellJob) User(name string) *ShellJob {
	j.user = strings.TrimSpace(name)
	return j
}

// In changes to dir before running the command.
func (j *ShellJob) In(dir string) *ShellJob {
	j.dir = strings.TrimSpace(dir)
	return j
}

// SendOutputTo writes stdout to path, truncating it on every run.
func (j *ShellJob) SendOutputTo(path string) *ShellJob {
	j.output = strings.TrimSpace(path)
	j.appendOutput = false
	return j
}

func (j *ShellJob) AppendOutputTo(path string) *ShellJob {
	j.output = strings.TrimSpace(path)
	j.appendOutput = true
	return j
}

// RunInBackground detaches the process. The job completes when the process
// reports back through "finish <id> <exit-code>".
func (j *ShellJob) RunInBackground() *ShellJob {
	j.background = true
	return j
}

// WithDialect overrides the shell dialect of the schedule or host.
func (j *ShellJob) WithDialect(d Dialect) *ShellJob {
	if d == nil {
		j.record(argumentError("shell job: nil dialect"))
		return j
	}
	j.dialect = d
	return j
}

func (j *ShellJob) Background() bool { return j.background }

// Output is the redirect target: the configured file or the null device.
func (j *ShellJob) Output() string {
	if j.output != "" {
		return j.output
	}
	return j.dialectOf().NullDevice()
}

func (j *ShellJob) dialectOf() Dialect {
	if j.dialect != nil {
		return j.dialect
	}
	if j.env.dialect != nil {
		return j.env.dialect
	}
	return HostDialect()
}

func (j *ShellJob) ID() string { return j.deriveID(j.command) }

func (j *ShellJob) SummaryForDisplay() string {
	if j.description != "" {
		return j.description
	}
	return j.BuildCommand()
}

// ExitCode returns the captured exit code. It is absent until a foreground
// run ends or Finish is called.
func (j *ShellJob) ExitCode() (int, bool) {
	if j.exitCode == nil {
		return 0, false
	}
	return *j.exitCode, true
}

// BuildCommand renders the full command line: redirect, completion callback
// for background jobs, working directory, then the user switch. A background
// job on a runner that detaches by itself is not backgrounded by the shell.
func (j *ShellJob) BuildCommand() string {
	d := j.dialectOf()
	command := strings.Trim(j.command, "& ")

	redirect := ">"
	if j.appendOutput {
		redirect = ">>"
	}
	redirect += " " + j.Output()
	if j.omitErrors {
		redirect += " 2>&1"
	}

	var line string
	if j.background {
		callback := fmt.Sprintf(`%s "%s" "%s"`, j.finishCommand(), j.ID(), d.ExitStatus())
		if process.DetachesOnStart(j.env.runner) {
			line = d.WrapSequenced(command, redirect, callback)
		} else {
			line = d.WrapDetached(command, redirect, callback)
		}
	} else {
		line = command + " " + redirect
	}
	line = d.WrapCwd(line, j.dir)
	return d.WrapUser(line, j.user)
}

func (j *ShellJob) finishCommand() string {
	if j.env.finish != "" {
		return j.env.finish
	}
	return unboundFinish
}

// Run executes the job. Foreground runs wait for the process and capture its
// exit code; a non-zero code is not an error. Background runs return Detached
// once the process is launched.
func (j *ShellJob) Run(ctx context.Context) RunResult {
	if j.background && j.env.finish == "" {
		err := configError("background job %q is not bound to a schedule with an entry point", j.SummaryForDisplay())
		return RunResult{Outcome: Skipped, Reason: "unbound background job", Err: err}
	}
	if d := j.beforeRun(ctx); !d.Proceed {
		return RunResult{Outcome: Skipped, Reason: d.Reason}
	}
	if j.background {
		return j.runInBackground(ctx)
	}
	return j.runInForeground(ctx)
}

func (j *ShellJob) runInForeground(ctx context.Context) RunResult {
	defer j.afterComplete(ctx)

	code, err := j.env.runner.Run(ctx, j.BuildCommand())
	j.exitCode = &code
	if err != nil {
		return RunResult{Outcome: Completed, Err: err}
	}
	return RunResult{Outcome: Completed}
}

func (j *ShellJob) runInBackground(ctx context.Context) RunResult {
	if err := j.env.runner.Start(ctx, j.BuildCommand()); err != nil {
		j.env.log.Warn("background launch failed", logx.Job(j.ID(), j.SummaryForDisplay()), logx.Err(err))
		// Nothing will ever call back; complete now so the lock is freed.
		j.Finish(ctx, -1)
		return RunResult{Outcome: Completed, Err: err}
	}
	return RunResult{Outcome: Detached}
}

// Finish records the exit code of a detached run and fires after-complete:
// the overlap lock is released and then hooks run.
func (j *ShellJob) Finish(ctx context.Context, exitCode int) {
	j.exitCode = &exitCode
	j.afterComplete(ctx)
}

// NotifyOutputTo sends the output file to recipients through the schedule's
// notifier after each completed run. Empty output is not sent. The job must
// write to a file.
func (j *ShellJob) NotifyOutputTo(recipients ...string) *ShellJob {
	if j.output == "" || isNullDevice(j.output) {
		j.record(configError("job %q: output must be sent to a file before it can be delivered", j.command))
		return j
	}
	return j.Then(func(ctx context.Context) {
		j.deliverOutput(ctx, recipients)
	})
}

func isNullDevice(path string) bool {
	return path == POSIX.NullDevice() || strings.EqualFold(path, Windows.NullDevice())
}

func (j *ShellJob) deliverOutput(ctx context.Context, recipients []string) {
	path := j.output
	if !filepath.IsAbs(path) && j.dir != "" {
		path = filepath.Join(j.dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		j.env.log.Warn("job output unreadable", logx.Job(j.ID(), j.SummaryForDisplay()), logx.String("path", path), logx.Err(err))
		return
	}
	body := strings.TrimSpace(string(b))
	if body == "" {
		return
	}
	name := j.description
	if name == "" {
		name = j.command
	}
	msg := notify.Message{
		Subject:    "Scheduled Job Output (" + name + ")",
		Body:       body,
		Recipients: recipients,
	}
	if err := j.env.notifier.Notify(ctx, msg); err != nil {
		j.env.log.Warn("job output delivery failed", logx.Job(j.ID(), j.SummaryForDisplay()), logx.Err(err))
	}
}
