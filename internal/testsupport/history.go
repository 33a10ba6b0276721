package testsupport

import (
	"context"
	"testing"

	"babel/internal/config"
	"babel/internal/history"
	"babel/internal/protocol"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordQueued inserts a queued entry for the request.
func RecordQueued(t testing.TB, store *history.Store, req protocol.Request) *history.Entry {
	t.Helper()

	ctx := context.Background()
	if err := store.RecordQueued(ctx, req, "test"); err != nil {
		t.Fatalf("store.RecordQueued: %v", err)
	}
	entry, err := store.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return entry
}
