package scheduling

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"jobsched/internal/storage"
)

func TestRunnerRunsDueJobs(t *testing.T) {
	t.Parallel()

	s, shell := newSchedule(t, Options{})
	s.Exec("php -i").Description("info")
	s.Exec("php -v").SkipBool(true)
	s.Exec("php -m").Daily()
	calls := 0
	_, _ = s.Call("count", func(context.Context, ...any) (any, error) { calls++; return nil, nil })

	var out bytes.Buffer
	history := &memoryHistory{}
	r := NewRunner(s, RunnerOptions{Out: &out, Verbose: true, History: history, Host: "web-1"})
	ran := r.Run(context.Background(), at("2026-05-04 10:07"))

	if len(ran) != 2 {
		t.Fatalf("ran %d jobs, want 2", len(ran))
	}
	want := "Running scheduled command: info\nRunning scheduled command: count\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if len(shell.ran) != 1 || calls != 1 {
		t.Fatalf("shell runs=%d callback calls=%d", len(shell.ran), calls)
	}
	if len(history.runs) != 2 {
		t.Fatalf("history has %d records, want 2", len(history.runs))
	}
	rec := history.runs[0]
	if rec.Outcome != storage.OutcomeCompleted || rec.Summary != "info" || rec.Host != "web-1" {
		t.Fatalf("history record = %+v", rec)
	}
	if rec.ExitCode == nil || *rec.ExitCode != 0 {
		t.Fatalf("history exit code = %v, want 0", rec.ExitCode)
	}
}

func TestRunnerNothingDue(t *testing.T) {
	t.Parallel()

	s, _ := newSchedule(t, Options{})
	s.Exec("php -i").Daily()

	var out bytes.Buffer
	NewRunner(s, RunnerOptions{Out: &out, Verbose: true}).Run(context.Background(), at("2026-05-04 10:07"))
	if out.String() != "No scheduled commands are ready to run.\n" {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	NewRunner(s, RunnerOptions{Out: &out}).Run(context.Background(), at("2026-05-04 10:07"))
	if out.Len() != 0 {
		t.Fatalf("quiet runner wrote %q", out.String())
	}
}

func TestRunnerDryRun(t *testing.T) {
	t.Parallel()

	s, shell := newSchedule(t, Options{})
	s.Exec("php -i")
	history := &memoryHistory{}

	var out bytes.Buffer
	ran := NewRunner(s, RunnerOptions{Out: &out, Verbose: true, DryRun: true, History: history}).
		Run(context.Background(), at("2026-05-04 10:07"))

	if len(ran) != 1 || len(shell.ran) != 0 {
		t.Fatalf("dry run listed %d and executed %d", len(ran), len(shell.ran))
	}
	if !strings.Contains(out.String(), "Running scheduled command: php -i > /dev/null") {
		t.Fatalf("output = %q", out.String())
	}
	if len(history.runs) != 1 || history.runs[0].Outcome != storage.OutcomeDryRun {
		t.Fatalf("history = %+v", history.runs)
	}
}

func TestRunnerOmitErrorsOverride(t *testing.T) {
	t.Parallel()

	s, shell := newSchedule(t, Options{})
	s.Exec("php -i")
	omit := true
	NewRunner(s, RunnerOptions{OmitErrors: &omit}).Run(context.Background(), at("2026-05-04 10:07"))

	if len(shell.ran) != 1 || shell.ran[0] != "php -i > /dev/null 2>&1" {
		t.Fatalf("runner saw %q", shell.ran)
	}
}

func TestRunnerForcesBackgroundForConcurrentShellJobs(t *testing.T) {
	t.Parallel()

	s, shell := newSchedule(t, Options{})
	a := s.Exec("php a.php")
	s.Exec("php b.php")
	opts := RunnerOptions{RunConcurrentShellJobsInBackground: true}
	ran := NewRunner(s, opts).Run(context.Background(), at("2026-05-04 10:07"))

	if len(shell.started) != 2 || len(shell.ran) != 0 {
		t.Fatalf("started=%d ran=%d, want both detached", len(shell.started), len(shell.ran))
	}
	if ran[0].Result.Outcome != Detached || !a.Background() {
		t.Fatalf("first job = %+v", ran[0].Result)
	}

	// A single shell job keeps running in the foreground.
	single, shell := newSchedule(t, Options{})
	single.Exec("php a.php")
	NewRunner(single, opts).Run(context.Background(), at("2026-05-04 10:07"))
	if len(shell.ran) != 1 || len(shell.started) != 0 {
		t.Fatalf("single job: started=%d ran=%d", len(shell.started), len(shell.ran))
	}
}

func TestRunnerFinishRoutesByID(t *testing.T) {
	t.Parallel()

	m := &scriptedMutex{}
	s, _ := newSchedule(t, Options{Mutex: m})
	s.Exec("php a.php")
	j := s.Exec("php import.php").Description("import").WithoutOverlapping().RunInBackground()
	history := &memoryHistory{}
	r := NewRunner(s, RunnerOptions{History: history})

	if err := r.Finish(context.Background(), j.ID(), 2); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if code, ok := j.ExitCode(); !ok || code != 2 {
		t.Fatalf("ExitCode() = %d, %v", code, ok)
	}
	if len(m.released) != 1 {
		t.Fatalf("lock released %d times, want 1", len(m.released))
	}
	if len(history.runs) != 1 || history.runs[0].Outcome != storage.OutcomeFinished || *history.runs[0].ExitCode != 2 {
		t.Fatalf("history = %+v", history.runs)
	}

	if err := r.Finish(context.Background(), "jobsched/schedule-unknown", 0); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("Finish(unknown) = %v, want ErrUnknownJob", err)
	}
}

func TestRunnerSkipsOverlappingAcrossInvocations(t *testing.T) {
	t.Parallel()

	// Two invocations sharing one mutex: the second sees the first still running.
	m := &scriptedMutex{answers: []bool{true, false}}
	build := func() (*Schedule, *recordingRunner) {
		s, shell := newSchedule(t, Options{Mutex: m})
		s.Exec("php import.php").Description("import").WithoutOverlapping().RunInBackground()
		return s, shell
	}

	first, firstShell := build()
	NewRunner(first, RunnerOptions{}).Run(context.Background(), at("2026-05-04 10:07"))
	second, secondShell := build()
	ran := NewRunner(second, RunnerOptions{}).Run(context.Background(), at("2026-05-04 10:08"))

	if len(firstShell.started) != 1 || len(secondShell.started) != 0 {
		t.Fatalf("first started %d, second started %d", len(firstShell.started), len(secondShell.started))
	}
	if ran[0].Result.Outcome != Skipped {
		t.Fatalf("second invocation = %+v, want skipped", ran[0].Result)
	}
}
