// Package storage keeps the run history of scheduled jobs.
//
// History is optional and advisory: the scheduler itself never reads it back
// to make decisions. The `history` CLI command and operators do.
package storage
