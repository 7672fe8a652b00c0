package mutex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const lockSchema = `CREATE TABLE IF NOT EXISTS jobsched_locks (
  key         TEXT PRIMARY KEY,
  holder      TEXT NOT NULL,
  acquired_at BIGINT NOT NULL
)`

// SQL stores one row per held key. The primary key makes the insert the
// atomic step: whoever inserts the row holds the lock.
//
// Queries are written with '?' placeholders and rebound for the driver.
type SQL struct {
	db          *sqlx.DB
	holder      string
	expireAfter time.Duration
	distributed bool
}

// OpenSQLite opens (and creates) a lock table in a SQLite file. Local to one host.
func OpenSQLite(ctx context.Context, path, holder string, expireAfter, busyTimeout time.Duration) (*SQL, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("mutex: sqlite driver needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mutex: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mutex: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mutex: sqlite %s: %w", pragma, err)
		}
	}
	return newSQL(ctx, db, holder, expireAfter, false)
}

// OpenPostgres connects with a lib/pq DSN. Visible to every host sharing the database.
func OpenPostgres(ctx context.Context, dsn, holder string, expireAfter time.Duration) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("mutex: postgres driver needs a dsn")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("mutex: connect postgres: %w", err)
	}
	return newSQL(ctx, db, holder, expireAfter, true)
}

func newSQL(ctx context.Context, db *sqlx.DB, holder string, expireAfter time.Duration, distributed bool) (*SQL, error) {
	if _, err := db.ExecContext(ctx, lockSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mutex: create lock table: %w", err)
	}
	return &SQL{db: db, holder: holder, expireAfter: expireAfter, distributed: distributed}, nil
}

func (m *SQL) Distributed() bool { return m.distributed }

func (m *SQL) Close() error { return m.db.Close() }

func (m *SQL) Acquire(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	now := time.Now()
	if m.expireAfter > 0 {
		cutoff := now.Add(-m.expireAfter).UnixMilli()
		if _, err := m.db.ExecContext(ctx,
			m.db.Rebind(`DELETE FROM jobsched_locks WHERE key = ? AND acquired_at < ?`), key, cutoff); err != nil {
			return false, fmt.Errorf("mutex: expire %s: %w", key, err)
		}
	}
	res, err := m.db.ExecContext(ctx,
		m.db.Rebind(`INSERT INTO jobsched_locks(key, holder, acquired_at) VALUES(?, ?, ?) ON CONFLICT (key) DO NOTHING`),
		key, m.holder, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("mutex: acquire %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mutex: acquire %s: %w", key, err)
	}
	return n == 1, nil
}

func (m *SQL) Release(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, m.db.Rebind(`DELETE FROM jobsched_locks WHERE key = ?`), key); err != nil {
		return fmt.Errorf("mutex: release %s: %w", key, err)
	}
	return nil
}

// Holder returns the recorded holder of key, or "" when free.
func (m *SQL) Holder(ctx context.Context, key string) (string, error) {
	var holders []string
	err := m.db.SelectContext(ctx, &holders, m.db.Rebind(`SELECT holder FROM jobsched_locks WHERE key = ?`), key)
	if err != nil || len(holders) == 0 {
		return "", err
	}
	return holders[0], nil
}
