// Package api holds the wire types shared by the HTTP surface, the
// WebSocket hub, and the IPC control socket. Internal models (tasks, history
// entries, dependency probes) convert into these DTOs at the transport
// boundary, so handlers and browser clients never touch orchestrator types
// directly.
//
// Field names use snake_case JSON tags to match the event payloads the
// broadcast hub pushes over WebSocket; a client decoding a REST response and
// a hub event sees one naming convention. Timestamps render as RFC3339 with
// millisecond precision and are omitted when zero. The FromTask,
// FromDependencies, and FromChecks converters produce deterministic output,
// so responses compare cleanly in tests. Typed result structs pass through
// unchanged since they already carry their own JSON tags.
package api
