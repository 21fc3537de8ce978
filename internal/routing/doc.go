// Package routing decides which backend path serves a request: the direct
// progressive download, the split download-then-render path, or the
// full-featured extractor.
package routing
