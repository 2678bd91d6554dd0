package id

import "testing"

func TestNewIDUnique(t *testing.T) {
	t.Parallel()

	gen := New()
	a, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	b, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if a == b {
		t.Fatalf("expected unique IDs, got %s twice", a)
	}
	if len(a) != 36 {
		t.Fatalf("expected UUID format, got %q", a)
	}
}
