// Package logs provides file tailing and the daemon log-stream client shared
// by the CLI and diagnostics.
//
// Tail streams log files with bounded memory usage, supports negative offsets
// for "last N lines" reads, and powers follow-mode updates for `grabit logs
// --follow`. StreamClient fetches structured events from the daemon's
// /api/logs endpoint when the HTTP API is reachable; callers fall back to
// Tail against the log file when it is not.
package logs
