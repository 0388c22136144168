// Package cache stores synthesized audio fragments so repeated text is not
// sent to the engine twice.
//
// A CacheManager fronts an in-memory LRU (L1) with an optional persistent
// tier (L2): zstd-compressed files with a gob index, or an embedded badger
// database. Persistent hits are promoted to memory, and entries older than
// the configured TTL are removed by a background cleanup routine.
package cache
