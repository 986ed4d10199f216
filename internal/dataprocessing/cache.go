package dataprocessing

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SnapshotCache memoizes finished snapshots by content fingerprint. Entries
// expire after the configured TTL so a long-running server does not pin
// tables for files that stopped existing.
type SnapshotCache struct {
	c *gocache.Cache
}

// NewSnapshotCache creates a cache whose entries live for ttl. A ttl of
// zero or less keeps entries until they are replaced.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &SnapshotCache{c: gocache.New(ttl, cleanup)}
}

// Get returns the cached snapshot for a fingerprint.
func (sc *SnapshotCache) Get(fingerprint string) (*Snapshot, bool) {
	v, ok := sc.c.Get(fingerprint)
	if !ok {
		return nil, false
	}
	return v.(*Snapshot), true
}

// Set stores a snapshot under its fingerprint.
func (sc *SnapshotCache) Set(fingerprint string, snap *Snapshot) {
	sc.c.Set(fingerprint, snap, gocache.DefaultExpiration)
}

// Flush drops every cached snapshot.
func (sc *SnapshotCache) Flush() {
	sc.c.Flush()
}

// Len reports the number of live entries.
func (sc *SnapshotCache) Len() int {
	return sc.c.ItemCount()
}
