package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	uri, err := store.PutObject(context.Background(), "job-1/abc.html", "text/html", strings.NewReader("<html/>"))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Fatalf("expected file:// URI, got %q", uri)
	}

	data, err := os.ReadFile(filepath.Join(dir, "job-1", "abc.html"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "<html/>" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := store.PutObject(context.Background(), "../escape.html", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}
