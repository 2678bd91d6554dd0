package system

import (
	"testing"
	"time"
)

func TestNowIsUTC(t *testing.T) {
	t.Parallel()

	now := New().Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC time, got %v", now.Location())
	}
	if time.Since(now) > time.Minute {
		t.Fatalf("clock is stale: %v", now)
	}
}
