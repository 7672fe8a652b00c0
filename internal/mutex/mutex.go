// Package mutex provides the named locks that keep a scheduled job from
// overlapping with itself, on one host or across many.
//
// Locks are not re-entrant: a second Acquire of a held key returns false even
// from the same process. Release never checks who holds the key, because the
// process that releases a background job's lock (the finish callback) is not
// the one that acquired it.
package mutex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "jobsched/pkg/logx"
)

// Mutex is the lock port consumed by the overlap guard.
type Mutex interface {
	// Acquire reports whether key was free and is now held.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release frees key. Releasing a free key is not an error.
	Release(ctx context.Context, key string) error
	// Distributed reports whether the lock is visible to other hosts.
	Distributed() bool
}

var ErrEmptyKey = errors.New("mutex: empty key")

// Config selects and configures a backend. See config.MutexConfig.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	Addr        string
	Password    string
	DB          int
	ExpireAfter time.Duration
	BusyTimeout time.Duration
}

// Open builds the configured backend. An empty driver yields the in-process mutex.
// The returned close func releases backend resources, not held locks.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Mutex, func() error, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	holder := newHolder()
	nop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(cfg.ExpireAfter), nop, nil
	case "file":
		m, err := NewFile(cfg.Path, holder, cfg.ExpireAfter)
		if err != nil {
			return nil, nil, err
		}
		return m, nop, nil
	case "sqlite":
		m, err := OpenSQLite(ctx, cfg.Path, holder, cfg.ExpireAfter, cfg.BusyTimeout)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case "postgres":
		m, err := OpenPostgres(ctx, cfg.DSN, holder, cfg.ExpireAfter)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case "redis":
		m, closeFn := OpenRedis(cfg.Addr, cfg.Password, cfg.DB, holder, cfg.ExpireAfter)
		return m, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown mutex driver: %s", cfg.Driver)
	}
}

// newHolder identifies this process in lock records: host/pid/random.
func newHolder() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString())
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
