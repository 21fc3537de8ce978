// Package batch runs independent work items under a fixed concurrency cap
// with per-item failure isolation and aggregate progress reporting.
package batch
