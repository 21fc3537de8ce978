// Package daemon coordinates the long-running grabit process.
//
// It assembles configuration, the download orchestrator, the broadcast hub,
// the history archive, and the HTTP/WebSocket API into one lifecycle guarded
// by a flock so only a single instance runs per state directory. Startup
// runs the preflight checks; afterwards the daemon answers the status
// queries the IPC layer serves and exposes history maintenance helpers.
//
// Retrieval behaviour belongs to the processor and orchestrator packages.
// This package only starts things, stops things, and wires them together.
package daemon
