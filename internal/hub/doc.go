// Package hub fans task events out to websocket observers. A single Run
// loop owns the connection set and the per-task subscription registry;
// orchestrator goroutines publish through channels and never touch the
// registries directly. Slow or dead connections are purged rather than
// allowed to stall delivery to others.
package hub
