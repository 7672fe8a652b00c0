package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobsched/internal/config"
	"jobsched/internal/runtime/supervisor"
	"jobsched/internal/scheduling"
	logx "jobsched/pkg/logx"
)

// Work runs the scheduler at the top of every minute until ctx is done,
// reloading the config file when it changes. It replaces an external cron
// entry that calls "run" each minute.
func (a *App) Work(ctx context.Context) (StopReason, error) {
	cfg := a.cfgm.Get()
	s, err := a.buildSchedule(cfg)
	if err != nil {
		return StopFatalError, err
	}
	if isMemoryDriver(cfg.Mutex.Driver) {
		a.warnDetachedLocks(s)
	}
	loc := s.Location()

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	ticker := a.ticker
	if ticker == nil {
		ticker = a.minuteTicker
	}
	ticks, stopTicks, err := ticker(loc)
	if err != nil {
		return StopFatalError, err
	}

	updates := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(updates)

	sup.Go0("work.tick", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticks:
				if _, err := a.Run(ctx, RunOptions{Now: now}); err != nil {
					a.log.Error("scheduler run failed", logx.Err(err))
				}
			}
		}
	})
	sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	sup.Go0("config.apply", func(ctx context.Context) {
		prev := cfg
		for {
			select {
			case <-ctx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.applyReload(prev, next)
				prev = next
			}
		}
	})

	a.log.Info("work loop started", logx.String("tz", loc.String()), logx.String("config", a.cfgPath))

	<-sup.Context().Done()
	stopTicks()

	reason := StopSignal
	if ctx.Err() == nil {
		reason = StopAppStop
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = sup.Stop(stopCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		reason = StopFatalError
	}
	a.log.Info("work loop stopped", logx.String("reason", reason.String()))
	return reason, err
}

// minuteTicker sends the time at the top of every minute in loc. A tick is
// dropped while the previous one is still being handled.
func (a *App) minuteTicker(loc *time.Location) (<-chan time.Time, func(), error) {
	ticks := make(chan time.Time, 1)
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc("* * * * *", func() {
		select {
		case ticks <- time.Now():
		default:
			a.log.Warn("previous minute still running; tick dropped")
		}
	}); err != nil {
		return nil, nil, err
	}
	c.Start()
	return ticks, func() { <-c.Stop().Done() }, nil
}

func (a *App) applyReload(prev, next *config.Config) {
	a.logs.Apply(mapLogConfig(next))

	sections, fields := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		return
	}
	a.log.Info("config reloaded", fields...)
	for _, s := range sections {
		switch s {
		case "mutex", "storage", "notifier", "runner":
			a.log.Warn("config section changed; restart to apply", logx.String("section", s))
		}
	}
}

// warnDetachedLocks flags background jobs guarded by the in-process mutex:
// their completion callback runs in another process and cannot release it.
func (a *App) warnDetachedLocks(s *scheduling.Schedule) {
	for _, j := range s.Jobs() {
		sj, ok := j.(*scheduling.ShellJob)
		if ok && sj.Background() && sj.PreventsOverlapping() {
			a.log.Warn("background job uses the memory mutex; its lock is only released by expiry",
				logx.Job(sj.ID(), sj.SummaryForDisplay()))
		}
	}
}

func isMemoryDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return true
	}
	return false
}
