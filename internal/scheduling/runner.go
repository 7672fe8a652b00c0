package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jobsched/internal/storage"
	logx "jobsched/pkg/logx"
)

var ErrUnknownJob = errors.New("scheduling: unknown job")

// RunnerOptions configures one invocation of the scheduler.
type RunnerOptions struct {
	// Out receives the progress lines. Nil discards them.
	Out     io.Writer
	Verbose bool
	// DryRun prints what would run without running it.
	DryRun bool
	// OmitErrors, when set, overrides every due job's own setting.
	OmitErrors *bool
	// RunConcurrentShellJobsInBackground detaches every shell job when more
	// than one is due, so a slow job cannot delay the others.
	RunConcurrentShellJobsInBackground bool
	// History records runs; nil keeps none.
	History storage.Store
	Host    string
	Logger  logx.Logger
}

// Runner drives a Schedule for one tick, or routes a completion callback.
type Runner struct {
	sched *Schedule
	opts  RunnerOptions
	log   logx.Logger
}

// Execution is one job considered by Run.
type Execution struct {
	Job    Job
	Result RunResult
	Took   time.Duration
}

func NewRunner(s *Schedule, opts RunnerOptions) *Runner {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	log := opts.Logger
	if log.IsZero() {
		log = s.env.log
	}
	return &Runner{sched: s, opts: opts, log: log}
}

func (r *Runner) printf(format string, args ...any) {
	if r.opts.Verbose {
		_, _ = fmt.Fprintf(r.opts.Out, format, args...)
	}
}

// Run executes the jobs due at now whose filters pass, one after another in
// registration order.
func (r *Runner) Run(ctx context.Context, now time.Time) []Execution {
	due := r.sched.DueJobs(now)
	forceBackground := r.opts.RunConcurrentShellJobsInBackground && countShellJobs(due) > 1

	var ran []Execution
	for _, job := range due {
		if err := ctx.Err(); err != nil {
			r.log.Warn("run interrupted", logx.Err(err))
			break
		}
		if !job.FiltersPass() {
			r.log.Debug("job filtered out", logx.Job(job.ID(), job.SummaryForDisplay()))
			continue
		}
		if r.opts.OmitErrors != nil {
			job.core().omitErrors = *r.opts.OmitErrors
		}
		if sj, ok := job.(*ShellJob); ok && forceBackground {
			sj.RunInBackground()
		}

		r.printf("Running scheduled command: %s\n", job.SummaryForDisplay())
		ex := Execution{Job: job}
		if r.opts.DryRun {
			ex.Result = RunResult{Outcome: Skipped, Reason: "dry run"}
			r.record(ctx, now, ex, storage.OutcomeDryRun)
		} else {
			start := time.Now()
			ex.Result = job.Run(ctx)
			ex.Took = time.Since(start)
			r.logResult(ex)
			r.record(ctx, now, ex, string(ex.Result.Outcome))
		}
		ran = append(ran, ex)
	}

	if len(ran) == 0 {
		r.printf("No scheduled commands are ready to run.\n")
	}
	return ran
}

// Finish completes the detached shell job with the given id.
func (r *Runner) Finish(ctx context.Context, id string, exitCode int) error {
	for _, job := range r.sched.Jobs() {
		sj, ok := job.(*ShellJob)
		if !ok || sj.ID() != id {
			continue
		}
		sj.Finish(ctx, exitCode)
		r.log.Info("background job finished", logx.Job(id, sj.SummaryForDisplay()), logx.Int("exit_code", exitCode))
		r.record(ctx, time.Now(), Execution{Job: sj, Result: RunResult{Outcome: Completed}}, storage.OutcomeFinished)
		return nil
	}
	r.log.Warn("finish for unknown job", logx.String("job_id", id), logx.Int("exit_code", exitCode))
	return fmt.Errorf("%w: %s", ErrUnknownJob, id)
}

func (r *Runner) logResult(e Execution) {
	fields := []logx.Field{
		logx.Job(e.Job.ID(), e.Job.SummaryForDisplay()),
		logx.String("outcome", string(e.Result.Outcome)),
		logx.Duration("took", e.Took),
	}
	if sj, ok := e.Job.(*ShellJob); ok {
		if code, ok := sj.ExitCode(); ok && e.Result.Outcome == Completed {
			fields = append(fields, logx.Int("exit_code", code))
		}
	}
	switch {
	case e.Result.Err != nil:
		r.log.Warn("job failed", append(fields, logx.Err(e.Result.Err))...)
	case e.Result.Outcome == Skipped:
		r.log.Debug("job skipped", append(fields, logx.String("reason", e.Result.Reason))...)
	default:
		r.log.Info("job ran", fields...)
	}
}

func (r *Runner) record(ctx context.Context, at time.Time, e Execution, outcome string) {
	if r.opts.History == nil {
		return
	}
	rec := storage.RunRecord{
		At:      at,
		JobID:   e.Job.ID(),
		Summary: e.Job.SummaryForDisplay(),
		Outcome: outcome,
		Reason:  e.Result.Reason,
		TookMS:  e.Took.Milliseconds(),
		Host:    r.opts.Host,
	}
	if e.Result.Err != nil {
		rec.Error = e.Result.Err.Error()
	}
	if sj, ok := e.Job.(*ShellJob); ok && outcome != storage.OutcomeDryRun {
		if code, ok := sj.ExitCode(); ok && (outcome == storage.OutcomeFinished || e.Result.Outcome == Completed) {
			rec.ExitCode = &code
		}
	}
	if err := r.opts.History.AppendRun(ctx, rec); err != nil {
		r.log.Warn("history write failed", logx.Job(rec.JobID, rec.Summary), logx.Err(err))
	}
}

func countShellJobs(jobs []Job) int {
	n := 0
	for _, j := range jobs {
		if _, ok := j.(*ShellJob); ok {
			n++
		}
	}
	return n
}
