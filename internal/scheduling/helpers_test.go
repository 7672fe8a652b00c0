package scheduling

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jobsched/internal/notify"
	"jobsched/internal/storage"
)

// scriptedMutex answers Acquire from a script and counts releases.
type scriptedMutex struct {
	mu          sync.Mutex
	answers     []bool
	acquired    []string
	released    []string
	distributed bool
}

func (m *scriptedMutex) Acquire(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquired = append(m.acquired, key)
	if len(m.answers) == 0 {
		return true, nil
	}
	ok := m.answers[0]
	m.answers = m.answers[1:]
	return ok, nil
}

func (m *scriptedMutex) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
	return nil
}

func (m *scriptedMutex) Distributed() bool { return m.distributed }

// recordingRunner captures commands instead of running them.
type recordingRunner struct {
	mu       sync.Mutex
	ran      []string
	started  []string
	code     int
	startErr error
}

func (r *recordingRunner) Run(_ context.Context, command string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, command)
	return r.code, nil
}

func (r *recordingRunner) Start(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, command)
	return r.startErr
}

// detachingRunner is a recordingRunner whose Start detaches by itself.
type detachingRunner struct {
	recordingRunner
}

func (*detachingRunner) DetachesOnStart() bool { return true }

type recordingNotifier struct {
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.msgs = append(n.msgs, msg)
	return nil
}

type memoryHistory struct {
	runs []storage.RunRecord
}

func (h *memoryHistory) AppendRun(_ context.Context, r storage.RunRecord) error {
	h.runs = append(h.runs, r)
	return nil
}

func (h *memoryHistory) RecentRuns(_ context.Context, jobID string, limit int) ([]storage.RunRecord, error) {
	var out []storage.RunRecord
	for i := len(h.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if jobID == "" || h.runs[i].JobID == jobID {
			out = append(out, h.runs[i])
		}
	}
	return out, nil
}

func (h *memoryHistory) Close() error { return nil }

// entryPoint creates an executable stand-in for the program jobs call back into.
func entryPoint(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobsched")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write entry point: %v", err)
	}
	return path
}

// newSchedule builds a POSIX schedule around a recording runner.
func newSchedule(t *testing.T, opts Options) (*Schedule, *recordingRunner) {
	t.Helper()
	runner := &recordingRunner{}
	if opts.EntryPoint == "" {
		opts.EntryPoint = entryPoint(t)
	}
	if opts.Runner == nil {
		opts.Runner = runner
	}
	if opts.Dialect == nil {
		opts.Dialect = POSIX
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, runner
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}
