package scheduling

import (
	"runtime"
	"strings"
)

// Dialect renders the shell-specific parts of a command line.
type Dialect interface {
	Name() string
	// NullDevice is the default output target.
	NullDevice() string
	// ExitStatus expands to the exit code of the previous command.
	ExitStatus() string
	WrapUser(command, user string) string
	WrapCwd(command, dir string) string
	// WrapSequenced composes command, its output redirect and the completion
	// callback into a line that returns when the callback has run.
	WrapSequenced(command, redirect, callback string) string
	// WrapDetached is WrapSequenced in a line that returns immediately.
	WrapDetached(command, redirect, callback string) string
}

var (
	POSIX   Dialect = posixDialect{}
	Windows Dialect = windowsDialect{}
)

// HostDialect returns the dialect of the running OS.
func HostDialect() Dialect {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return POSIX
}

type posixDialect struct{}

func (posixDialect) Name() string       { return "posix" }
func (posixDialect) NullDevice() string { return "/dev/null" }
func (posixDialect) ExitStatus() string { return "$?" }

func (posixDialect) WrapUser(command, user string) string {
	if user == "" {
		return command
	}
	return "sudo -u " + user + " -- sh -c '" + strings.ReplaceAll(command, "'", `'\''`) + "'"
}

func (posixDialect) WrapCwd(command, dir string) string {
	if dir == "" {
		return command
	}
	return "cd " + dir + "; " + command
}

func (posixDialect) WrapSequenced(command, redirect, callback string) string {
	return "(" + command + " " + redirect + " ; " + callback + ")"
}

func (d posixDialect) WrapDetached(command, redirect, callback string) string {
	return d.WrapSequenced(command, redirect, callback) + " > " + d.NullDevice() + " 2>&1 &"
}

type windowsDialect struct{}

func (windowsDialect) Name() string       { return "windows" }
func (windowsDialect) NullDevice() string { return "NUL" }
func (windowsDialect) ExitStatus() string { return "%errorlevel%" }

// WrapUser is a no-op: there is no sudo equivalent that takes a command line.
func (windowsDialect) WrapUser(command, _ string) string { return command }

func (windowsDialect) WrapCwd(command, dir string) string {
	if dir == "" {
		return command
	}
	return "cd /d " + dir + " & " + command
}

func (windowsDialect) WrapSequenced(command, redirect, callback string) string {
	return "(" + command + " & " + callback + ") " + redirect
}

func (d windowsDialect) WrapDetached(command, redirect, callback string) string {
	return `start /b cmd /c "` + d.WrapSequenced(command, redirect, callback) + `"`
}
