package testsupport

import (
	"context"
	"testing"
	"time"

	"grabit/internal/config"
	"grabit/internal/history"
)

// MustOpenHistory opens the download archive for tests and closes it when
// the test finishes.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// RecordEntry archives entry, filling in the kind and completion time when
// the caller left them zero, and returns it with its assigned ID.
func RecordEntry(t testing.TB, store *history.Store, entry *history.Entry) *history.Entry {
	t.Helper()

	if entry.Kind == "" {
		entry.Kind = "single"
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	if err := store.Record(context.Background(), entry); err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return entry
}
