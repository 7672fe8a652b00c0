// Package process runs the shell commands built for scheduled jobs.
//
// Commands arrive fully built: redirection, working directory, user switch
// and (for background jobs) the completion callback are already part of the
// string. A runner only chooses the shell and how the process is attached.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// Runner executes built command lines.
type Runner interface {
	// Run executes command and waits for it. A non-zero exit status is
	// returned as the code with a nil error; err is reserved for failing to
	// run the shell at all, in which case the code is -1.
	Run(ctx context.Context, command string) (int, error)
	// Start launches command so that it outlives the caller.
	Start(ctx context.Context, command string) error
}

// Detacher is implemented by runners whose Start detaches the process
// itself. Commands for them must not background themselves.
type Detacher interface {
	DetachesOnStart() bool
}

// DetachesOnStart reports whether r is a Detacher that detaches.
func DetachesOnStart(r Runner) bool {
	d, ok := r.(Detacher)
	return ok && d.DetachesOnStart()
}

// Exec runs commands as children through the platform shell.
type Exec struct {
	Shell     string
	ShellFlag string
}

// NewExec picks "sh -c" or "cmd /C" by GOOS.
func NewExec() *Exec {
	if runtime.GOOS == "windows" {
		return &Exec{Shell: "cmd", ShellFlag: "/C"}
	}
	return &Exec{Shell: "/bin/sh", ShellFlag: "-c"}
}

func (e *Exec) Run(ctx context.Context, command string) (int, error) {
	cmd := exec.CommandContext(ctx, e.Shell, e.ShellFlag, command)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("process: run: %w", err)
}

// Start relies on the command backgrounding itself ("... &" or "start /b").
// The shell returns as soon as the job is forked, so waiting for it is cheap.
func (e *Exec) Start(ctx context.Context, command string) error {
	// The launched job must survive cancellation of the invocation that started it.
	code, err := e.Run(context.WithoutCancel(ctx), command)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("process: launcher exited with status %d", code)
	}
	return nil
}
