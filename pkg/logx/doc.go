// Package logx configures jobsched's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional journald sink for hosts where the scheduler runs from a systemd timer
package logx
