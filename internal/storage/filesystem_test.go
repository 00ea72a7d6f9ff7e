package storage

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestWriteReadRemoveRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "generation-history", []byte(`[{"taskId":"t1"}]`))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if string(data) != `[{"taskId":"t1"}]` {
		t.Fatalf("data = %q", data)
	}

	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read after remove = %v, want os.ErrNotExist", err)
	}
}

func TestRemoveMissingKeyIsNoError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if err := store.Remove(context.Background(), "never-written"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("Write should reject traversal keys")
	}
	if _, err := store.Read(context.Background(), ""); err == nil {
		t.Fatal("Read should reject empty keys")
	}
}
