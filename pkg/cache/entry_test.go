package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "not expired", expires: time.Now().Add(5 * time.Minute), want: false},
		{name: "expired", expires: time.Now().Add(-5 * time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	entry := NewEntry([]byte(`{"content":[]}`), 5*time.Minute)
	ttl := entry.TTL()
	if ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL() = %v, want ~5m", ttl)
	}

	expired := &CacheEntry{Expires: time.Now().Add(-time.Minute)}
	if expired.TTL() != 0 {
		t.Errorf("expired TTL() = %v, want 0", expired.TTL())
	}
}

func TestNewEntry(t *testing.T) {
	data := []byte(`{"content":[{"id":1}]}`)
	entry := NewEntry(data, time.Minute)

	if string(entry.Data) != string(data) {
		t.Errorf("Data = %s, want %s", entry.Data, data)
	}
	if entry.CachedAt.IsZero() {
		t.Error("CachedAt should be set")
	}
	if entry.Age() < 0 || entry.Age() > time.Second {
		t.Errorf("Age() = %v, want ~0", entry.Age())
	}
}
