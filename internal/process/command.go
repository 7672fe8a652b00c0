package process

import "strings"

// foregroundForm strips the trailing background operator from a POSIX
// command line built for detached execution.
func foregroundForm(command string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(command), "&"))
}

// unitExecStart is the ExecStart argv of a transient unit running command.
func unitExecStart(command string) []string {
	return []string{"/bin/sh", "-c", foregroundForm(command)}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 4 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
