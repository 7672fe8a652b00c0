// Package cronexpr holds the five-field cron expression used by scheduled jobs
// and answers "is it due" and "when next" questions about it.
//
// Fields are, in order: minute, hour, day-of-month, month, day-of-week
// (Sunday = 0). Evaluation is delegated to robfig/cron's standard parser.
package cronexpr
