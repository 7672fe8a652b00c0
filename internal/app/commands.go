package app

import (
	"context"
	"time"

	"jobsched/internal/cronexpr"
	"jobsched/internal/scheduling"
	"jobsched/internal/storage"
)

// RunOptions are the flags of one scheduler invocation.
type RunOptions struct {
	DryRun bool
	// OmitErrors overrides every job's omit_errors when non-nil.
	OmitErrors *bool
	// Quiet silences the progress lines even when schedule.verbose is on.
	Quiet bool
	// Now defaults to time.Now().
	Now time.Time
}

// Run executes the jobs due now.
func (a *App) Run(ctx context.Context, ro RunOptions) ([]scheduling.Execution, error) {
	cfg := a.cfgm.Get()
	s, err := a.buildSchedule(cfg)
	if err != nil {
		return nil, err
	}
	now := ro.Now
	if now.IsZero() {
		now = time.Now()
	}
	return a.newRunner(s, cfg, ro).Run(ctx, now), nil
}

// Finish routes the completion callback of a detached shell job.
func (a *App) Finish(ctx context.Context, id string, exitCode int) error {
	cfg := a.cfgm.Get()
	s, err := a.buildSchedule(cfg)
	if err != nil {
		return err
	}
	return a.newRunner(s, cfg, RunOptions{Quiet: true}).Finish(ctx, id, exitCode)
}

// JobInfo is one line of "list".
type JobInfo struct {
	ID                 string
	Summary            string
	Expression         string
	Timezone           string
	Next               []time.Time
	Background         bool
	WithoutOverlapping bool
}

// List describes every configured job with its next n fire times.
func (a *App) List(now time.Time, n int) ([]JobInfo, error) {
	s, err := a.Schedule()
	if err != nil {
		return nil, err
	}
	var out []JobInfo
	for _, j := range s.Jobs() {
		loc := j.Location()
		next, err := cronexpr.Next(j.Expression(), now.In(loc), n)
		if err != nil {
			return nil, err
		}
		info := JobInfo{
			ID:                 j.ID(),
			Summary:            j.SummaryForDisplay(),
			Expression:         j.Expression().String(),
			Timezone:           loc.String(),
			Next:               next,
			WithoutOverlapping: j.PreventsOverlapping(),
		}
		if sj, ok := j.(*scheduling.ShellJob); ok {
			info.Background = sj.Background()
		}
		out = append(out, info)
	}
	return out, nil
}

// History returns recent runs, newest first. jobID may be empty.
func (a *App) History(ctx context.Context, jobID string, limit int) ([]storage.RunRecord, error) {
	if a.store == nil {
		return nil, storage.ErrDisabled
	}
	return a.store.RecentRuns(ctx, jobID, limit)
}
