// Package notifications pushes download milestones to ntfy.
//
// A topic in config.toml turns the feature on; without one NewService hands
// back a no-op so callers never branch. The orchestrator announces finished
// downloads, playlists, and batches plus failed tasks, which lets users
// follow long-running work without keeping a WebSocket open.
//
// Alternative transports would slot in behind the Service interface; nothing
// outside this package touches the ntfy wire format.
package notifications
