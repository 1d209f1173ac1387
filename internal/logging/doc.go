// Package logging assembles structured slog loggers and formatting helpers used
// across cavacolor.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so the sync loop can tag log
// lines with the track being processed and the daemon session. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
