// Package ipc carries the control protocol between the grabit CLI and the
// daemon: a JSON-RPC server on a Unix socket plus the matching client.
//
// Request and response types live here so both ends share one definition.
// The client dials with a short timeout and returns dial errors unwrapped,
// letting commands distinguish a missing daemon from a refused socket.
package ipc
