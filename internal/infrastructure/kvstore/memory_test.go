package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", "v", 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	if err := s.Put(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	clock = clock.Add(time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get at expiry: %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	if err := s.Put(ctx, "k", "v", 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	clock = clock.Add(1000 * time.Hour)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("get far in the future: %v", err)
	}
}
