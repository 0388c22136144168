package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

// CacheManager coordinates the memory tier and an optional persistent tier.
// Persistent hits are promoted to memory.
type CacheManager struct {
	l1 *MemoryCache
	l2 Store // nil for the memory backend

	config *Config

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats struct {
		hits        int64
		misses      int64
		l1Hits      int64
		l2Hits      int64
		promotions  int64
		writeErrors int64
		cleanupRuns int64
		lastCleanup time.Time
	}
}

// ManagerStats aggregates counters across tiers.
type ManagerStats struct {
	Backend     Backend
	Dir         string
	Hits        int64
	Misses      int64
	L1Hits      int64
	L2Hits      int64
	Promotions  int64
	WriteErrors int64
	CleanupRuns int64
	LastCleanup time.Time

	Memory     Stats
	Persistent *Stats // nil for the memory backend
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s ManagerStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// DefaultDir returns the per-user cache directory for backend.
func DefaultDir(backend Backend) (string, error) {
	scope := gap.NewScope(gap.User, "soundbox")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(backend)), nil
}

// NewCacheManager creates a cache manager with the given configuration.
func NewCacheManager(config *Config) (*CacheManager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Backend == "" {
		config.Backend = BackendDisk
	}

	if config.Dir == "" && config.Backend != BackendMemory {
		dir, err := DefaultDir(config.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		config.Dir = dir
	}

	var l2 Store
	switch config.Backend {
	case BackendMemory:
	case BackendDisk:
		dc, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		l2 = dc
	case BackendBadger:
		bc, err := NewBadgerCache(BadgerOptions{Dir: config.Dir, TTL: config.TTL})
		if err != nil {
			return nil, err
		}
		l2 = bc
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
	}

	cm := &CacheManager{
		l1:          NewMemoryCache(config.MemoryCapacity),
		l2:          l2,
		config:      config,
		cleanupStop: make(chan struct{}),
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		cm.startCleanupRoutine()
	}

	log.Debug("Cache ready", "backend", config.Backend, "dir", config.Dir)
	return cm, nil
}

// Get checks memory first, then the persistent tier.
func (cm *CacheManager) Get(key string) ([]byte, bool) {
	if data, ok := cm.l1.Get(key); ok {
		cm.mu.Lock()
		cm.stats.hits++
		cm.stats.l1Hits++
		cm.mu.Unlock()
		return data, true
	}

	if cm.l2 != nil {
		if data, ok := cm.l2.Get(key); ok {
			promoted := cm.l1.Put(key, data) == nil

			cm.mu.Lock()
			cm.stats.hits++
			cm.stats.l2Hits++
			if promoted {
				cm.stats.promotions++
			}
			cm.mu.Unlock()
			return data, true
		}
	}

	cm.mu.Lock()
	cm.stats.misses++
	cm.mu.Unlock()
	return nil, false
}

// Put stores a fragment in every tier. Fragments larger than a tier are
// skipped by that tier. Persistent tier failures are logged and returned.
func (cm *CacheManager) Put(key string, value []byte) error {
	if err := cm.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("L1 cache error: %w", err)
	}

	if cm.l2 == nil {
		return nil
	}
	if err := cm.l2.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		cm.mu.Lock()
		cm.stats.writeErrors++
		cm.mu.Unlock()
		log.Warn("Persistent cache write failed", "backend", cm.config.Backend, "error", err)
		return fmt.Errorf("L2 cache error: %w", err)
	}
	return nil
}

// Delete removes an entry from every tier.
func (cm *CacheManager) Delete(key string) error {
	var errs []error
	if err := cm.l1.Delete(key); err != nil {
		errs = append(errs, fmt.Errorf("L1 delete: %w", err))
	}
	if cm.l2 != nil {
		if err := cm.l2.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("L2 delete: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Clear removes every entry from every tier.
func (cm *CacheManager) Clear() error {
	var errs []error
	if err := cm.l1.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("L1 clear: %w", err))
	}
	if cm.l2 != nil {
		if err := cm.l2.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("L2 clear: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Cleanup removes entries older than the configured TTL and reports how
// many persistent entries were dropped.
func (cm *CacheManager) Cleanup() int {
	cm.mu.Lock()
	cm.stats.cleanupRuns++
	cm.stats.lastCleanup = time.Now()
	cm.mu.Unlock()

	if cm.config.TTL <= 0 {
		return 0
	}

	pruned := cm.l1.Prune(cm.config.TTL)
	removed := 0
	if cm.l2 != nil {
		removed = cm.l2.RemoveOlderThan(time.Now().Add(-cm.config.TTL))
	}
	if pruned > 0 || removed > 0 {
		log.Debug("Cache cleanup", "memory", pruned, "persistent", removed)
	}
	return removed
}

// Stats returns aggregated statistics from all tiers.
func (cm *CacheManager) Stats() ManagerStats {
	cm.mu.Lock()
	s := ManagerStats{
		Backend:     cm.config.Backend,
		Dir:         cm.config.Dir,
		Hits:        cm.stats.hits,
		Misses:      cm.stats.misses,
		L1Hits:      cm.stats.l1Hits,
		L2Hits:      cm.stats.l2Hits,
		Promotions:  cm.stats.promotions,
		WriteErrors: cm.stats.writeErrors,
		CleanupRuns: cm.stats.cleanupRuns,
		LastCleanup: cm.stats.lastCleanup,
	}
	cm.mu.Unlock()

	s.Memory = cm.l1.Stats()
	if cm.l2 != nil {
		l2 := cm.l2.Stats()
		s.Persistent = &l2
	}
	return s
}

// Close stops the cleanup routine and closes the persistent tier.
func (cm *CacheManager) Close() error {
	var err error
	cm.closeOnce.Do(func() {
		close(cm.cleanupStop)
		cm.cleanupWg.Wait()

		if cm.l2 != nil {
			if cerr := cm.l2.Close(); cerr != nil {
				err = fmt.Errorf("failed to close %s cache: %w", cm.config.Backend, cerr)
			}
		}
	})
	return err
}

func (cm *CacheManager) startCleanupRoutine() {
	ticker := time.NewTicker(cm.config.CleanupInterval)
	cm.cleanupWg.Add(1)

	go func() {
		defer cm.cleanupWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.Cleanup()
			case <-cm.cleanupStop:
				return
			}
		}
	}()
}
