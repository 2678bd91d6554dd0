package memory

import (
	"context"
	"strings"
	"testing"
)

func TestPutObjectStoresBytes(t *testing.T) {
	t.Parallel()

	s := New()
	uri, err := s.PutObject(context.Background(), "a/b.html", "text/html", strings.NewReader("body"))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "mem://a/b.html" {
		t.Fatalf("unexpected uri %q", uri)
	}
	b, ok := s.Object("a/b.html")
	if !ok || string(b) != "body" {
		t.Fatalf("stored object mismatch: %q %v", b, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", s.Len())
	}
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := New().PutObject(context.Background(), "", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}
