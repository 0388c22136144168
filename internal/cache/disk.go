package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	diskIndexFile = "index.gob"

	// compressThreshold skips compression for payloads too small to benefit.
	compressThreshold = 1024
)

// DiskCache is a persistent L2 tier storing one file per fragment, optionally
// zstd-compressed, with a gob-encoded index.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

// diskEntry is one fragment in the index. Fields are exported for gob.
type diskEntry struct {
	Key        string
	File       string
	DiskSize   int64
	AudioSize  int64
	Stored     time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDiskCache opens (or creates) a disk cache in dir. A compressionLevel of
// zero stores fragments uncompressed.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		dc.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "error", err)
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.DiskSize
	}

	log.Debug("Opened disk cache", "dir", dir, "entries", len(dc.index), "bytes", dc.size)
	return dc, nil
}

// Get reads a fragment from disk.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.stats.LastAccess = time.Now()
	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.File)
	if err == nil && entry.Compressed {
		if dc.decoder == nil {
			err = errors.New("entry is compressed but compression is disabled")
		} else {
			data, err = dc.decoder.DecodeAll(data, nil)
		}
	}
	if err != nil {
		log.Warn("Dropping unreadable cache entry", "key", key, "error", err)
		dc.drop(key)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	dc.stats.Hits++
	return data, true
}

// Put writes a fragment to disk, evicting least recently used entries to
// stay within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data := value
	compressed := false
	if dc.encoder != nil && len(value) > compressThreshold {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data = c
			compressed = true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	if _, ok := dc.index[key]; ok {
		dc.drop(key)
	}
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	file := dc.fileFor(key)
	if err := writeFileAtomic(file, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:        key,
		File:       file,
		DiskSize:   n,
		AudioSize:  int64(len(value)),
		Stored:     now,
		LastAccess: now,
		Compressed: compressed,
	}
	dc.size += n

	return dc.saveIndex()
}

// Delete removes a fragment if present.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if _, ok := dc.index[key]; !ok {
		return nil
	}
	dc.drop(key)
	return dc.saveIndex()
}

// Clear removes every fragment file and empties the index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.drop(key)
	}
	dc.size = 0
	return dc.saveIndex()
}

// RemoveOlderThan drops fragments stored before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, entry := range dc.index {
		if entry.Stored.Before(cutoff) {
			dc.drop(key)
			removed++
		}
	}
	if removed > 0 {
		if err := dc.saveIndex(); err != nil {
			log.Warn("Failed to save cache index", "error", err)
		}
	}
	return removed
}

// Entries returns index entries, least recently used first.
func (dc *DiskCache) Entries() []EntryInfo {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	out := make([]EntryInfo, 0, len(dc.index))
	for _, e := range dc.index {
		out = append(out, EntryInfo{
			Key:        e.Key,
			Size:       e.AudioSize,
			DiskSize:   e.DiskSize,
			Stored:     e.Stored,
			LastAccess: e.LastAccess,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccess.Before(out[j].LastAccess)
	})
	return out
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.size
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.ItemCount = int64(len(dc.index))
	return s
}

// Close saves the index and releases the zstd coders.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	if dc.decoder != nil {
		dc.decoder.Close()
	}
	return dc.saveIndex()
}

// EntryInfo describes one stored fragment.
type EntryInfo struct {
	Key        string
	Size       int64 // audio bytes
	DiskSize   int64 // bytes on disk
	Stored     time.Time
	LastAccess time.Time
}

// fileFor maps a key to a file name that is safe on every filesystem.
func (dc *DiskCache) fileFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dc.dir, hex.EncodeToString(sum[:16])+".wav.cache")
}

// drop removes an entry and its file. Caller holds the lock.
func (dc *DiskCache) drop(key string) {
	entry := dc.index[key]
	if err := os.Remove(entry.File); err != nil && !os.IsNotExist(err) {
		log.Debug("Failed to remove cache file", "file", entry.File, "error", err)
	}
	dc.size -= entry.DiskSize
	delete(dc.index, key)
}

// evictOldest drops the least recently used entry. Caller holds the lock.
func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, e := range dc.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		dc.drop(oldest.Key)
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, diskIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, diskIndexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(dc.index)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
