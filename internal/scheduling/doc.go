// Package scheduling holds the schedule: jobs, their frequencies and
// filters, the overlap guard, and the shell command builder.
//
// A schedule is rebuilt from its definition on every invocation. An external
// caller (the jobsched CLI, once per minute) asks for the due jobs, runs the
// ones whose filters pass, and routes "finish <id> <exit-code>" callbacks from
// detached shell jobs back to the matching job.
package scheduling
