// Package history archives completed downloads in a SQLite database.
//
// The archive is write-only from the orchestrator's perspective: a row is
// recorded when a single download (or a playlist/batch item) completes, and
// the CLI and HTTP API read it back for display. Nothing ever restores task
// state from the archive.
package history
