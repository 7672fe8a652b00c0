package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobsched/internal/scheduling"
	"jobsched/internal/storage"
)

// newTestApp writes a YAML config with one shell job into a temp dir.
func newTestApp(t *testing.T, jobYAML string) (*App, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "jobsched")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
	cfg := fmt.Sprintf(`
logging:
  level: error
storage:
  driver: file
  path: %s
schedule:
  timezone: UTC
  jobs:
%s
`, filepath.Join(dir, "history"), jobYAML)
	cfgPath := filepath.Join(dir, "jobsched.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	a, err := New(context.Background(), cfgPath, Options{Executable: exe, Stdout: &out})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, &out, dir
}

func TestAppRunExecutesDueJobs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")
	a, stdout, _ := newTestApp(t, fmt.Sprintf(`
    - description: greet
      command: echo scheduled
      output: %s
      frequency: [everyMinute]
`, out))

	ctx := context.Background()
	execs, err := a.Run(ctx, RunOptions{Now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(execs) != 1 || execs[0].Result.Outcome != scheduling.Completed {
		t.Fatalf("executions = %+v", execs)
	}
	if got := stdout.String(); got != "Running scheduled command: greet\n" {
		t.Fatalf("stdout = %q", got)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(b)) != "scheduled" {
		t.Fatalf("output = %q", b)
	}

	runs, err := a.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != storage.OutcomeCompleted || runs[0].ExitCode == nil || *runs[0].ExitCode != 0 {
		t.Fatalf("history = %+v", runs)
	}
}

func TestAppRunNothingDue(t *testing.T) {
	a, stdout, _ := newTestApp(t, `
    - command: "true"
      frequency: ["dailyAt 3:00"]
`)
	execs, err := a.Run(context.Background(), RunOptions{Now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(execs) != 0 {
		t.Fatalf("executions = %d, want 0", len(execs))
	}
	if got := stdout.String(); got != "No scheduled commands are ready to run.\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestAppDryRunDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	a, stdout, _ := newTestApp(t, fmt.Sprintf(`
    - command: touch %s
`, marker))

	execs, err := a.Run(context.Background(), RunOptions{DryRun: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions = %d, want 1", len(execs))
	}
	if !strings.HasPrefix(stdout.String(), "Running scheduled command: ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if _, err := os.Stat(marker); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run touched the marker: %v", err)
	}
}

func TestAppQuietRun(t *testing.T) {
	a, stdout, _ := newTestApp(t, `
    - command: "true"
`)
	if _, err := a.Run(context.Background(), RunOptions{Quiet: true, DryRun: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", stdout.String())
	}
}

func TestAppFinishUnknownJob(t *testing.T) {
	a, _, _ := newTestApp(t, `
    - command: "true"
`)
	err := a.Finish(context.Background(), "jobsched/schedule-nope", 0)
	if !errors.Is(err, scheduling.ErrUnknownJob) {
		t.Fatalf("Finish err = %v, want ErrUnknownJob", err)
	}
}

func TestAppFinishKnownJob(t *testing.T) {
	a, _, _ := newTestApp(t, `
    - description: export
      command: "true"
      background: true
      frequency: [hourly]
`)
	jobs, err := a.List(time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || !jobs[0].Background {
		t.Fatalf("jobs = %+v", jobs)
	}

	ctx := context.Background()
	if err := a.Finish(ctx, jobs[0].ID, 3); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	runs, err := a.History(ctx, jobs[0].ID, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != storage.OutcomeFinished || runs[0].ExitCode == nil || *runs[0].ExitCode != 3 {
		t.Fatalf("history = %+v", runs)
	}
}

func TestAppList(t *testing.T) {
	a, _, _ := newTestApp(t, `
    - description: report
      command: "true"
      frequency: ["dailyAt 13:00"]
      without_overlapping: true
`)
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	jobs, err := a.List(now, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	j := jobs[0]
	if j.Summary != "report" || j.Expression != "0 13 * * *" || !j.WithoutOverlapping || j.Timezone != "UTC" {
		t.Fatalf("job = %+v", j)
	}
	want := []time.Time{
		time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC),
	}
	if len(j.Next) != 2 || !j.Next[0].Equal(want[0]) || !j.Next[1].Equal(want[1]) {
		t.Fatalf("next = %v, want %v", j.Next, want)
	}
}

func TestAppWorkRunsOnTickAndStopsOnCancel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	a, _, _ := newTestApp(t, fmt.Sprintf(`
    - description: greet
      command: echo ticked
      output: %s
`, out))

	ticks := make(chan time.Time, 1)
	stopped := make(chan struct{})
	a.ticker = func(*time.Location) (<-chan time.Time, func(), error) {
		return ticks, func() { close(stopped) }, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		reason StopReason
		err    error
	}
	done := make(chan result, 1)
	go func() {
		reason, err := a.Work(ctx)
		done <- result{reason, err}
	}()

	ticks <- time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	deadline := time.Now().Add(5 * time.Second)
	for {
		b, _ := os.ReadFile(out)
		if strings.TrimSpace(string(b)) == "ticked" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not run on tick; output = %q", b)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Work err = %v", r.err)
		}
		if r.reason != StopSignal {
			t.Fatalf("reason = %v, want %v", r.reason, StopSignal)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Work did not return after cancel")
	}
	select {
	case <-stopped:
	default:
		t.Fatalf("ticker was not stopped")
	}
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jobsched.json")
	if err := os.WriteFile(cfgPath, []byte(`{"schedule":{"jobs":[{"command":"a","subcommand":"b"}]}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := New(context.Background(), cfgPath, Options{Executable: cfgPath}); err == nil {
		t.Fatalf("New accepted a job with both command and subcommand")
	}
}

func TestStopReasonString(t *testing.T) {
	t.Parallel()
	if got := StopReason("").String(); got != "unknown" {
		t.Fatalf("String() = %q", got)
	}
	if got := StopSignal.String(); got != "signal" {
		t.Fatalf("String() = %q", got)
	}
}
