package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobsched/internal/config"
	"jobsched/internal/mutex"
	"jobsched/internal/notify"
	"jobsched/internal/process"
	"jobsched/internal/scheduling"
	"jobsched/internal/storage"
	logx "jobsched/pkg/logx"
)

// Options tune how the App reaches the outside world. Zero values are fine.
type Options struct {
	// Executable is the program completion callbacks re-invoke. Defaults to
	// the running executable.
	Executable string
	// Stdout receives the scheduler's progress lines. Defaults to os.Stdout.
	Stdout io.Writer
}

// App wires the config file to a Schedule and the backends its jobs share.
type App struct {
	cfgPath string
	cfgm    *config.ConfigManager
	opts    Options

	log  logx.Logger
	logs *logx.Service

	mutex       mutex.Mutex
	closeMutex  func() error
	store       storage.Store
	notifier    notify.Notifier
	pinger      notify.Pinger
	runner      process.Runner
	closeRunner func() error
	host        string

	// ticker drives Work; nil means minuteTicker.
	ticker func(loc *time.Location) (<-chan time.Time, func(), error)
}

func New(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if strings.TrimSpace(opts.Executable) == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		opts.Executable = exe
	}
	if abs, err := filepath.Abs(cfgPath); err == nil {
		cfgPath = abs
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgPath:     cfgPath,
		cfgm:        cfgm,
		opts:        opts,
		log:         log.With(logx.String("comp", "app")),
		logs:        logs,
		closeMutex:  func() error { return nil },
		closeRunner: func() error { return nil },
	}
	a.host, _ = os.Hostname()

	mc, err := mapMutexConfig(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	m, closeMutex, err := mutex.Open(ctx, mc, log.With(logx.String("comp", "mutex")))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("mutex: %w", err)
	}
	a.mutex, a.closeMutex = m, closeMutex

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = a.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.store = st
		a.log.Debug("history enabled", logx.String("driver", sc.Driver))
	}

	a.notifier, a.pinger, err = openNotify(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.runner, a.closeRunner = openRunner(ctx, cfg, log.With(logx.String("comp", "runner")))

	// Reloaded files must still produce a schedule.
	cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		if err := config.Validate(next); err != nil {
			return err
		}
		_, err := a.buildSchedule(next)
		return err
	})
	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Close releases the backends. Held locks are not released.
func (a *App) Close() error {
	var errs []error
	if err := a.closeRunner(); err != nil {
		errs = append(errs, fmt.Errorf("runner: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if err := a.closeMutex(); err != nil {
		errs = append(errs, fmt.Errorf("mutex: %w", err))
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logging: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Schedule builds the schedule of the committed config.
func (a *App) Schedule() (*scheduling.Schedule, error) {
	return a.buildSchedule(a.cfgm.Get())
}

func (a *App) buildSchedule(cfg *config.Config) (*scheduling.Schedule, error) {
	sc := cfg.Schedule

	loc := time.Local
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("schedule.timezone: %w", err)
		}
		loc = l
	}

	opts := scheduling.Options{
		EntryPoint:  sc.EntryPoint,
		Interpreter: sc.Interpreter,
		EntryArgs:   sc.EntryArgs,
		Mutex:       a.mutex,
		Location:    loc,
		Runner:      a.runner,
		Notifier:    a.notifier,
		Pinger:      a.pinger,
		Logger:      a.log.With(logx.String("comp", "schedule")),
	}
	// The running executable needs the config path to find the same jobs
	// when it is called back.
	if strings.TrimSpace(sc.EntryPoint) == "" {
		opts.EntryPoint = a.opts.Executable
		opts.EntryArgs = append([]string{"--config", a.cfgPath}, sc.EntryArgs...)
	} else {
		opts.FallbackEntryPoint = a.opts.Executable
	}

	s, err := scheduling.New(opts)
	if err != nil {
		return nil, err
	}
	if err := define(s, sc, a.environment(sc)); err != nil {
		return nil, err
	}
	return s, nil
}

// environment is APP_ENV, else schedule.environment.
func (a *App) environment(sc config.ScheduleConfig) string {
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		return v
	}
	return strings.TrimSpace(sc.Environment)
}

func (a *App) newRunner(s *scheduling.Schedule, cfg *config.Config, ro RunOptions) *scheduling.Runner {
	return scheduling.NewRunner(s, scheduling.RunnerOptions{
		Out:                                a.opts.Stdout,
		Verbose:                            cfg.Schedule.IsVerbose() && !ro.Quiet,
		DryRun:                             ro.DryRun,
		OmitErrors:                         ro.OmitErrors,
		RunConcurrentShellJobsInBackground: cfg.Schedule.RunConcurrentShellJobsInBackground,
		History:                            a.store,
		Host:                               a.host,
		Logger:                             a.log.With(logx.String("comp", "runner")),
	})
}
