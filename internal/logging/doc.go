// Package logging assembles structured slog loggers and formatting helpers used
// across grabit services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so task code can automatically
// tag log lines with task IDs and stages. The package also provides a no-op
// logger for tests and wiring code that cannot fail, and a StreamHub that
// buffers recent log events for the daemon's log streaming endpoint.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing guarantees as the rest of the system.
package logging
