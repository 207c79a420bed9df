package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shieldfi/shieldfi/internal/logging"
)

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	if _, err := backend.Get(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := backend.Put(ctx, DefaultKey, []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := backend.Put(ctx, DefaultKey, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err := backend.Get(ctx, DefaultKey)
	if err != nil || string(value) != "second" {
		t.Fatalf("expected second, got %q (%v)", value, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be renamed away, found %d entries", len(entries))
	}

	if err := backend.Delete(ctx, DefaultKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := backend.Delete(ctx, DefaultKey); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestFileMirrorSurvivesNewInstance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, _ := NewFileBackend(dir)
	if err := NewMirror(first, "", logging.Discard()).Save(ctx, sampleSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, _ := NewFileBackend(dir)
	got := NewMirror(second, "", logging.Discard()).Load(ctx)
	if !sampleSession().Equal(got) {
		t.Fatalf("expected restored session, got %+v", got)
	}
}

func TestNewFileBackendRequiresDir(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
