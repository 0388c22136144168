package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrUnknownBackend is returned for a backend name other than memory, disk or badger
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Level represents the cache tier an entry was served from.
type Level int

const (
	// LevelMemory is the in-process LRU (fastest)
	LevelMemory Level = iota

	// LevelPersistent is the disk or badger store
	LevelPersistent
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelPersistent:
		return "L2-Persistent"
	default:
		return "Unknown"
	}
}

// Backend names the persistent tier implementation.
type Backend string

const (
	// BackendMemory keeps fragments in memory only
	BackendMemory Backend = "memory"

	// BackendDisk stores zstd-compressed files with a gob index
	BackendDisk Backend = "disk"

	// BackendBadger stores fragments in an embedded badger database
	BackendBadger Backend = "badger"
)

// Stats holds cache counters for one tier.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes, 0 when unbounded
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of fragments stored

	Hits      int64
	Misses    int64
	Evictions int64

	LastAccess time.Time
	LastEvict  time.Time
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config holds configuration for a CacheManager.
type Config struct {
	// MemoryCapacity bounds the L1 tier in bytes
	MemoryCapacity int64

	// Backend selects the L2 tier
	Backend Backend

	// Dir holds the L2 files or database
	Dir string

	// DiskCapacity bounds the disk tier in bytes (badger is unbounded)
	DiskCapacity int64

	// CompressionLevel is the zstd level for the disk tier (0 disables)
	CompressionLevel int

	// TTL expires persistent entries; 0 keeps them forever
	TTL time.Duration

	// CleanupInterval is how often expired entries are removed (0 disables)
	CleanupInterval time.Duration
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MemoryCapacity:   64 * 1024 * 1024,  // 64MB
		Backend:          BackendDisk,
		DiskCapacity:     512 * 1024 * 1024, // 512MB
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Store is a persistent L2 tier.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error

	// RemoveOlderThan drops entries written before cutoff and reports how many.
	RemoveOlderThan(cutoff time.Time) int

	Size() int64
	Stats() Stats
	Close() error
}

// GenerateCacheKey derives the key for a synthesized fragment. Every input
// that changes the audio is part of the key.
func GenerateCacheKey(text, language, speaker, model string) string {
	h := sha256.New()
	for _, part := range []string{text, language, speaker, model} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
