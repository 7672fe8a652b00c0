package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobsched/internal/app"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"run", "dry-run", "finish", "list", "history", "work"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not found: %v", name, err)
		}
	}
}

func TestFinishRejectsBadExitCode(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "finish", "id", "nope"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), `exit code "nope"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestDryRunCommandPrintsDueJobs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jobsched.json")
	cfg := `{"logging":{"level":"error"},"schedule":{"jobs":[{"description":"heartbeat","command":"true"}]}}`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "dry-run"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "Running scheduled command: heartbeat\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC)
	err := printJobs(&buf, []app.JobInfo{{
		Summary:            "report",
		Expression:         "0 13 * * *",
		Timezone:           "UTC",
		Next:               []time.Time{at},
		WithoutOverlapping: true,
	}})
	if err != nil {
		t.Fatalf("printJobs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, want := range []string{"0 13 * * *", "UTC", "2026-03-03 13:00", "o", "report"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row %q missing %q", lines[1], want)
		}
	}

	buf.Reset()
	if err := printJobs(&buf, nil); err != nil {
		t.Fatalf("printJobs: %v", err)
	}
	if buf.String() != "No jobs are scheduled.\n" {
		t.Fatalf("empty output = %q", buf.String())
	}
}
