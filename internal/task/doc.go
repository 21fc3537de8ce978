// Package task models retrieval tasks, their forward-only lifecycle, and
// the in-memory registry that tracks them.
package task
