package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pmarren/courier/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "sessions", []byte(`[{"id":"cs_1"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, err := store.Get(ctx, "sessions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `[{"id":"cs_1"}]` {
		t.Errorf("unexpected value: %q", value)
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "autosave_enabled", []byte("true")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "autosave_enabled", []byte("false")); err != nil {
		t.Fatal(err)
	}

	value, err := store.Get(ctx, "autosave_enabled")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "false" {
		t.Errorf("unexpected value: %q", value)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "sessions", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "sessions"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "sessions"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "sessions"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "../escape/attempt", []byte("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one file, got %d", len(entries))
	}
	if filepath.Dir(filepath.Join(dir, entries[0].Name())) != dir {
		t.Error("file escaped the data dir")
	}

	value, err := store.Get(ctx, "../escape/attempt")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "x" {
		t.Errorf("unexpected value: %q", value)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := store.Set(ctx, "sessions", []byte("[]")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one file, got %d", len(entries))
	}
}
