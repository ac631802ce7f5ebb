package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client against a local Redis.
// Integration tests use testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := CacheKey{Path: "/contacts", Query: url.Values{"page": {"1"}, "size": {"10"}}}
	entry := NewEntry([]byte(`{"content":[{"id":1}],"paging":{"page":1,"size":10}}`), time.Minute)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
}

func TestManager_GetMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), CacheKey{Path: "/nothing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SetExpiredSkipped(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := CacheKey{Path: "/contacts"}

	expired := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Second)}
	if err := manager.Set(ctx, key, expired); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SetNil(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	if err := manager.Set(context.Background(), CacheKey{Path: "/x"}, nil); err == nil {
		t.Error("Set(nil) should fail")
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := CacheKey{Path: "/contacts"}

	if err := client.Set(ctx, key.String(), "not-json", time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_DeletePrefix(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	for _, page := range []string{"1", "2", "3"} {
		key := CacheKey{Path: "/contacts", Query: url.Values{"page": {page}, "size": {"10"}}}
		if err := manager.Set(ctx, key, NewEntry([]byte(`{}`), time.Minute)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	keep := CacheKey{Path: "/orders", Query: url.Values{"size": {"10"}}}
	if err := manager.Set(ctx, keep, NewEntry([]byte(`{}`), time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	removed, err := manager.DeletePrefix(ctx, PathPrefix("GET", "/contacts"))
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if _, err := manager.Get(ctx, keep); err != nil {
		t.Errorf("unrelated entry removed: %v", err)
	}
}

func TestManager_DeletePrefixLiteralPath(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	glob := CacheKey{Path: "/con*", Query: url.Values{"size": {"10"}}}
	other := CacheKey{Path: "/contacts", Query: url.Values{"size": {"10"}}}
	for _, key := range []CacheKey{glob, other} {
		if err := manager.Set(ctx, key, NewEntry([]byte(`{}`), time.Minute)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	removed, err := manager.DeletePrefix(ctx, PathPrefix("GET", "/con*"))
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := manager.Get(ctx, other); err != nil {
		t.Errorf("path matched as a pattern: %v", err)
	}
}
