package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T, cfg *Config) *CacheManager {
	t.Helper()
	manager, err := NewCacheManager(cfg)
	if err != nil {
		t.Fatalf("Failed to create cache manager: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestCacheManager_Backends(t *testing.T) {
	tests := []struct {
		name       string
		backend    Backend
		persistent bool
	}{
		{"memory", BackendMemory, false},
		{"disk", BackendDisk, true},
		{"badger", BackendBadger, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager(t, &Config{
				MemoryCapacity:   1024,
				Backend:          tt.backend,
				Dir:              t.TempDir(),
				DiskCapacity:     10240,
				CompressionLevel: 3,
			})

			key := GenerateCacheKey("namaste", "hi-IN", "anushka", "bulbul:v2")
			if err := manager.Put(key, []byte("fragment")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, ok := manager.Get(key)
			if !ok || string(got) != "fragment" {
				t.Fatalf("Get() = %q, %v", got, ok)
			}

			stats := manager.Stats()
			if stats.Backend != tt.backend {
				t.Errorf("Backend = %s, want %s", stats.Backend, tt.backend)
			}
			if (stats.Persistent != nil) != tt.persistent {
				t.Errorf("Persistent stats present = %v, want %v", stats.Persistent != nil, tt.persistent)
			}
			if stats.L1Hits != 1 {
				t.Errorf("L1Hits = %d, want 1", stats.L1Hits)
			}

			if err := manager.Delete(key); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, ok := manager.Get(key); ok {
				t.Error("Key still exists after delete")
			}
		})
	}
}

func TestCacheManager_Promotion(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity: 1024,
		Backend:        BackendDisk,
		Dir:            t.TempDir(),
		DiskCapacity:   10240,
	})

	if err := manager.Put("k", []byte("value")); err != nil {
		t.Fatal(err)
	}
	_ = manager.l1.Clear()

	if _, ok := manager.Get("k"); !ok {
		t.Fatal("expected persistent hit")
	}
	if !manager.l1.Contains("k") {
		t.Error("persistent hit should be promoted to memory")
	}
	if _, ok := manager.Get("k"); !ok {
		t.Fatal("expected memory hit")
	}

	stats := manager.Stats()
	if stats.L2Hits != 1 || stats.L1Hits != 1 || stats.Promotions != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.HitRate() != 1 {
		t.Errorf("HitRate = %f, want 1", stats.HitRate())
	}
}

func TestCacheManager_LargeFragmentsSkipMemory(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity: 10,
		Backend:        BackendDisk,
		Dir:            t.TempDir(),
		DiskCapacity:   10240,
	})

	if err := manager.Put("big", make([]byte, 100)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if manager.l1.Contains("big") {
		t.Error("fragment larger than memory tier should not be kept in memory")
	}
	if _, ok := manager.Get("big"); !ok {
		t.Error("fragment should be served from the persistent tier")
	}
}

func TestCacheManager_Clear(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity: 1024,
		Backend:        BackendDisk,
		Dir:            t.TempDir(),
		DiskCapacity:   10240,
	})

	for i := 0; i < 5; i++ {
		_ = manager.Put(fmt.Sprintf("key-%d", i), []byte("v"))
	}
	if err := manager.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	stats := manager.Stats()
	if stats.Memory.ItemCount != 0 || stats.Persistent.ItemCount != 0 {
		t.Errorf("items remain after clear: %+v", stats)
	}
}

func TestCacheManager_Cleanup(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity: 1024,
		Backend:        BackendDisk,
		Dir:            t.TempDir(),
		DiskCapacity:   10240,
		TTL:            20 * time.Millisecond,
	})

	_ = manager.Put("stale", []byte("v"))
	time.Sleep(40 * time.Millisecond)
	_ = manager.Put("fresh", []byte("v"))

	if removed := manager.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if _, ok := manager.Get("stale"); ok {
		t.Error("stale entry should be removed")
	}
	if _, ok := manager.Get("fresh"); !ok {
		t.Error("fresh entry should remain")
	}
	if manager.Stats().CleanupRuns != 1 {
		t.Errorf("CleanupRuns = %d, want 1", manager.Stats().CleanupRuns)
	}
}

func TestCacheManager_CleanupRoutine(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity:  1024,
		Backend:         BackendMemory,
		TTL:             10 * time.Millisecond,
		CleanupInterval: 5 * time.Millisecond,
	})

	_ = manager.Put("k", []byte("v"))

	deadline := time.Now().Add(2 * time.Second)
	for manager.l1.Contains("k") {
		if time.Now().After(deadline) {
			t.Fatal("cleanup routine never pruned the entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheManager_UnknownBackend(t *testing.T) {
	_, err := NewCacheManager(&Config{Backend: "redis", Dir: t.TempDir()})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("error = %v, want ErrUnknownBackend", err)
	}
}

func TestCacheManager_CloseTwice(t *testing.T) {
	manager, err := NewCacheManager(&Config{
		MemoryCapacity:  1024,
		Backend:         BackendDisk,
		Dir:             t.TempDir(),
		DiskCapacity:    1024,
		TTL:             time.Hour,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestCacheManager_ConcurrentAccess(t *testing.T) {
	manager := newTestManager(t, &Config{
		MemoryCapacity: 1 << 20,
		Backend:        BackendDisk,
		Dir:            t.TempDir(),
		DiskCapacity:   1 << 20,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				key := fmt.Sprintf("w%d-%d", id, j)
				if err := manager.Put(key, []byte(key)); err != nil {
					t.Errorf("Put(%s) error = %v", key, err)
					return
				}
				if got, ok := manager.Get(key); !ok || string(got) != key {
					t.Errorf("Get(%s) = %q, %v", key, got, ok)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateCacheKey(t *testing.T) {
	base := GenerateCacheKey("text", "hi-IN", "anushka", "bulbul:v2")
	if len(base) != 64 {
		t.Errorf("key length = %d, want 64", len(base))
	}
	if base != GenerateCacheKey("text", "hi-IN", "anushka", "bulbul:v2") {
		t.Error("key should be deterministic")
	}

	variants := []string{
		GenerateCacheKey("text!", "hi-IN", "anushka", "bulbul:v2"),
		GenerateCacheKey("text", "en-IN", "anushka", "bulbul:v2"),
		GenerateCacheKey("text", "hi-IN", "vidya", "bulbul:v2"),
		GenerateCacheKey("text", "hi-IN", "anushka", "bulbul:v1"),
		GenerateCacheKey("texth", "i-IN", "anushka", "bulbul:v2"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}
