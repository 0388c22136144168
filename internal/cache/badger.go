package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/charmbracelet/log"
)

// fragmentPrefix namespaces fragment keys inside the database.
var fragmentPrefix = []byte("frag/")

// BadgerCache is a persistent L2 tier backed by an embedded BadgerDB.
// Values are stored with an 8-byte big-endian timestamp header so entries
// can be aged out.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration

	mu    sync.Mutex
	stats Stats
}

// BadgerOptions configures a BadgerCache.
type BadgerOptions struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory runs without touching disk, for tests.
	InMemory bool

	// TTL expires entries natively inside badger (0 keeps them).
	TTL time.Duration
}

// NewBadgerCache opens the database described by opts.
func NewBadgerCache(opts BadgerOptions) (*BadgerCache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger cache: Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	log.Debug("Opened badger cache", "dir", opts.Dir, "inMemory", opts.InMemory)
	return &BadgerCache{db: db, ttl: opts.TTL}, nil
}

func fragmentKey(key string) []byte {
	return append(append([]byte{}, fragmentPrefix...), key...)
}

// Get reads a fragment.
func (b *BadgerCache) Get(key string) ([]byte, bool) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fragmentKey(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.LastAccess = time.Now()

	if err != nil || len(val) < 8 {
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			log.Warn("Badger cache read failed", "key", key, "error", err)
		}
		b.stats.Misses++
		return nil, false
	}
	b.stats.Hits++
	return val[8:], true
}

// Put writes a fragment.
func (b *BadgerCache) Put(key string, value []byte) error {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano())) //nolint:gosec
	copy(buf[8:], value)

	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(fragmentKey(key), buf)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes a fragment if present.
func (b *BadgerCache) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fragmentKey(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Clear removes every fragment.
func (b *BadgerCache) Clear() error {
	return b.db.DropPrefix(fragmentPrefix)
}

// RemoveOlderThan deletes fragments written before cutoff and reclaims
// value log space.
func (b *BadgerCache) RemoveOlderThan(cutoff time.Time) int {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fragmentPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				if len(v) < 8 || time.Unix(0, int64(binary.BigEndian.Uint64(v[:8]))).Before(cutoff) { //nolint:gosec
					stale = append(stale, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("Badger cache scan failed", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			log.Warn("Badger cache delete failed", "error", err)
			return 0
		}
	}
	if err := wb.Flush(); err != nil {
		log.Warn("Badger cache delete failed", "error", err)
		return 0
	}

	if err := b.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		log.Debug("Badger value log GC", "error", err)
	}
	return len(stale)
}

// Size returns the LSM and value log size in bytes.
func (b *BadgerCache) Size() int64 {
	lsm, vlog := b.db.Size()
	return lsm + vlog
}

// Stats returns a snapshot of the counters.
func (b *BadgerCache) Stats() Stats {
	count := int64(0)
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = fragmentPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Size = b.Size()
	s.ItemCount = count
	return s
}

// Close closes the database.
func (b *BadgerCache) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's logs through charmbracelet/log, demoting its
// chatty info output to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Errorf("badger: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Warnf("badger: "+f, v...) }
func (badgerLogger) Infof(f string, v ...interface{})    { log.Debugf("badger: "+f, v...) }
func (badgerLogger) Debugf(f string, v ...interface{})   { log.Debugf("badger: "+f, v...) }
