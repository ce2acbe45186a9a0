package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bananaforge/internal/domain"
)

func TestFileStoreWrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(context.Background(), "runs/abc/img.webp", []byte("data"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "runs/abc/img.webp" {
		t.Fatalf("key = %q", key)
	}

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "runs", "abc", "img.webp"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "data" {
		t.Fatalf("content = %q", data)
	}
}

func TestFileStoreWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, err = store.Write(context.Background(), "../escape.bin", []byte("x"))
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestFileStoreWriteEmptyKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Write(context.Background(), "  ", []byte("x")); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestSanitizeKeyNormalizes(t *testing.T) {
	key, err := sanitizeKey(`./runs\abc\file.png`)
	if err != nil {
		t.Fatalf("sanitizeKey: %v", err)
	}
	if key != "runs/abc/file.png" {
		t.Fatalf("key = %q", key)
	}
}
