// Package orchestrator owns the task lifecycle from submission to a terminal
// status. It admits tasks into the in-memory registry, drives extraction and
// download through the retrieval backend, fans playlist and batch items out
// under the concurrency cap, republishes per-item events under the parent
// task id, and archives completed work.
//
// Cancellation is cooperative. Each task carries its own context; cancelling
// it stamps the registry and stops the run at the next step boundary, while
// backend calls already dispatched run to completion and their results are
// discarded.
package orchestrator
