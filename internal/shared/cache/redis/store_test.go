package redis

import (
	"context"
	"os"
	"testing"
	"time"
)

// newTestStore 连接本地 Redis，不可用时跳过测试
func newTestStore(t *testing.T) *Store {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	store, err := NewStore(addr, os.Getenv("TEST_REDIS_PASSWORD"), 15)
	if err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}
	t.Cleanup(func() {
		store.client.FlushDB(context.Background())
		store.Close()
	})
	return store
}

func TestStore_SetGetTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "tracker_test:k1", "v1", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "tracker_test:k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || value != "v1" {
		t.Errorf("Expected (v1, true), got (%s, %v)", value, ok)
	}

	remaining, err := store.TTL(ctx, "tracker_test:k1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if remaining <= 59*time.Minute || remaining > time.Hour {
		t.Errorf("Unexpected remaining TTL: %v", remaining)
	}
}

// TestStore_NoExpiry ttl <= 0 写入的键没有过期时间，TTL 报告为 0
func TestStore_NoExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "tracker_test:forever", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	remaining, err := store.TTL(ctx, "tracker_test:forever")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 TTL for persistent key, got %v", remaining)
	}
}

func TestStore_MissingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "tracker_test:missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected miss for absent key")
	}

	remaining, err := store.TTL(ctx, "tracker_test:missing")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 TTL for absent key, got %v", remaining)
	}
}

func TestStore_KeysAndMGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := map[string]string{
		"tracker_test:session:a": "1",
		"tracker_test:session:b": "2",
		"tracker_test:bot:a":     "3",
	}
	for k, v := range seed {
		if err := store.Set(ctx, k, v, time.Hour); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx, "tracker_test:session:*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 session keys, got %d: %v", len(keys), keys)
	}

	values, err := store.MGet(ctx, []string{"tracker_test:session:a", "tracker_test:absent", "tracker_test:session:b"})
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("Expected 3 values, got %d", len(values))
	}
	if values[0] == nil || *values[0] != "1" {
		t.Errorf("Expected value 1 at index 0, got %v", values[0])
	}
	if values[1] != nil {
		t.Errorf("Expected nil for absent key, got %v", *values[1])
	}
	if values[2] == nil || *values[2] != "2" {
		t.Errorf("Expected value 2 at index 2, got %v", values[2])
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "tracker_test:gone", "v", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "tracker_test:gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, _ := store.Get(ctx, "tracker_test:gone")
	if ok {
		t.Error("Expected key to be deleted")
	}

	if err := store.Delete(ctx, "tracker_test:gone"); err != nil {
		t.Errorf("Deleting absent key should be a no-op, got %v", err)
	}
}

// TestStore_Raw 原生命令透传
func TestStore_Raw(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "tracker_test:raw", "v", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Raw(ctx, "TTL", "tracker_test:raw")
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	seconds, ok := result.(int64)
	if !ok || seconds <= 0 {
		t.Errorf("Expected positive TTL seconds, got %v", result)
	}
}
