package testsupport

import (
	"context"
	"testing"

	"arcmigrate/internal/config"
	"arcmigrate/internal/workstore"
)

// MustOpenStore opens a workstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *workstore.Store {
	t.Helper()

	store, err := workstore.Open(cfg)
	if err != nil {
		t.Fatalf("workstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates batch if needed and appends an item carrying record.
func NewItem(t testing.TB, store *workstore.Store, batch string, clipID int64, record string) *workstore.WorkItem {
	t.Helper()

	ctx := context.Background()
	if err := store.CreateBatch(ctx, batch, workstore.ModeMain, ""); err != nil {
		t.Fatalf("store.CreateBatch: %v", err)
	}
	id, err := store.AddItem(ctx, batch, workstore.NewItem{Payload: record, ClipID: clipID})
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	item, err := store.Get(ctx, batch, id)
	if err != nil || item == nil {
		t.Fatalf("store.Get: %v", err)
	}
	return item
}
