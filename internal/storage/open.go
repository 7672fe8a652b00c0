package storage

import (
	"context"
	"fmt"
	"strings"

	logx "jobsched/pkg/logx"
)

// Store is the history API used by the scheduling runner and the CLI.
type Store interface {
	AppendRun(ctx context.Context, r RunRecord) error
	// RecentRuns returns at most limit records, newest first.
	// A non-empty jobID restricts the result to that job.
	RecentRuns(ctx context.Context, jobID string, limit int) ([]RunRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
