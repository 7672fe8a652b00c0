package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome values recorded in RunRecord.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeDetached  = "detached"
	OutcomeFinished  = "finished"
	OutcomeDryRun    = "dry-run"
)

// RunRecord is one line of history: a job run, a skip, or a background finish.
// Keep it compact and schema-stable.
type RunRecord struct {
	At       time.Time `json:"at"`
	JobID    string    `json:"job_id"`
	Summary  string    `json:"summary"`
	Outcome  string    `json:"outcome"`
	ExitCode *int      `json:"exit_code,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
	Host     string    `json:"host,omitempty"`
}
