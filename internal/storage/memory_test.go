package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreGetMissingKey(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Get(context.Background(), "absent"); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemoryStoreSetGetDel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "tier:cache:u1", "premium", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := store.Get(ctx, "tier:cache:u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "premium" {
		t.Errorf("expected premium, got %q", val)
	}

	if err := store.Del(ctx, "tier:cache:u1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := store.Get(ctx, "tier:cache:u1"); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	ctx := context.Background()

	store.Set(ctx, "k", "v", time.Minute)

	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("key should be live before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreIncr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	val, err := store.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "3" {
		t.Errorf("expected counter value 3, got %q", val)
	}
}

func TestMemoryStoreIncrAfterExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	ctx := context.Background()

	store.Incr(ctx, "counter")
	store.Expire(ctx, "counter", time.Minute)

	now = now.Add(2 * time.Minute)

	got, err := store.Incr(ctx, "counter")
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if got != 1 {
		t.Errorf("expired counter should restart at 1, got %d", got)
	}
}

func TestMemoryStoreSortedSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.ZAdd(ctx, "log", 100, "a")
	store.ZAdd(ctx, "log", 200, "b")
	store.ZAdd(ctx, "log", 300, "c")

	count, err := store.ZCount(ctx, "log", 150, 300)
	if err != nil {
		t.Fatalf("zcount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 members in [150,300], got %d", count)
	}

	// Re-adding a member updates its score instead of duplicating
	store.ZAdd(ctx, "log", 250, "a")
	count, _ = store.ZCount(ctx, "log", 0, 1000)
	if count != 3 {
		t.Errorf("expected 3 members after score update, got %d", count)
	}

	if err := store.ZRemRangeByScore(ctx, "log", 0, 250); err != nil {
		t.Fatalf("zremrangebyscore: %v", err)
	}
	count, _ = store.ZCount(ctx, "log", 0, 1000)
	if count != 1 {
		t.Errorf("expected 1 member after trim, got %d", count)
	}
}
