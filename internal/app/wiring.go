package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobsched/internal/config"
	"jobsched/internal/mutex"
	"jobsched/internal/notify"
	"jobsched/internal/process"
	"jobsched/internal/storage"
	logx "jobsched/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Journal: logx.JournalConfig{
			Enabled:    lc.Journal.Enabled,
			Identifier: lc.Journal.Identifier,
		},
	}
}

func mapMutexConfig(cfg *config.Config) (mutex.Config, error) {
	mc := cfg.Mutex
	expire, err := config.ParseDurationField("mutex.expire_after", mc.ExpireAfter)
	if err != nil {
		return mutex.Config{}, err
	}
	busy, err := config.ParseDurationOrDefault("mutex.busy_timeout", mc.BusyTimeout, 5*time.Second)
	if err != nil {
		return mutex.Config{}, err
	}
	return mutex.Config{
		Driver:      strings.TrimSpace(mc.Driver),
		Path:        strings.TrimSpace(mc.Path),
		DSN:         strings.TrimSpace(mc.DSN),
		Addr:        strings.TrimSpace(mc.Addr),
		Password:    mc.Password,
		DB:          mc.DB,
		ExpireAfter: expire,
		BusyTimeout: busy,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// openNotify builds the output notifier and the pinger. Without a notifier
// section output is discarded and pings use the default timeout.
func openNotify(cfg *config.Config) (notify.Notifier, notify.Pinger, error) {
	var n notify.Notifier = notify.Discard{}
	nc := cfg.Notifier
	if nc == nil {
		return n, notify.NewHTTPPinger(0), nil
	}
	pingTimeout, err := config.ParseDurationOrDefault("notifier.ping_timeout", nc.PingTimeout, 10*time.Second)
	if err != nil {
		return nil, nil, err
	}
	if tg := nc.Telegram; tg != nil {
		timeout, err := config.ParseDurationOrDefault("notifier.telegram.timeout", tg.Timeout, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		t, err := notify.NewTelegram(notify.TelegramConfig{
			Token:      tg.Token,
			ChatID:     tg.ChatID,
			ThreadID:   tg.ThreadID,
			RatePerSec: tg.RatePerSec,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("notifier.telegram: %w", err)
		}
		n = t
	}
	return n, notify.NewHTTPPinger(pingTimeout), nil
}

// openRunner returns the process runner and its close func. The systemd
// driver falls back to exec when no system bus is reachable.
func openRunner(ctx context.Context, cfg *config.Config, log logx.Logger) (process.Runner, func() error) {
	nop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Runner.Driver)) {
	case "systemd":
		prefix := strings.TrimSpace(cfg.Runner.UnitPrefix)
		if prefix == "" {
			prefix = "jobsched"
		}
		sd, err := process.NewSystemd(ctx, prefix)
		if err != nil {
			log.Warn("systemd runner unavailable; using exec", logx.Err(err))
			return process.NewExec(), nop
		}
		return sd, sd.Close
	default:
		return process.NewExec(), nop
	}
}
