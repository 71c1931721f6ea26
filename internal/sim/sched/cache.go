package sched

import (
	"sync"
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/mathx"
)

// ttlCache holds short-lived results of expensive world scans, sharded by key
// so unrelated agents never serialize on one lock. Entries expire after the
// TTL; a periodic sweep evicts the dead ones.
type ttlCache struct {
	ttl    time.Duration
	nowFn  func() time.Time
	shards [cacheShardCount]cacheShard
}

const cacheShardCount = 16

type cacheShard struct {
	mu sync.Mutex
	m  map[uint64]cacheEntry
}

type cacheEntry struct {
	cell    geo.Cell
	found   bool
	expires time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	c := &ttlCache{ttl: ttl, nowFn: time.Now}
	for i := range c.shards {
		c.shards[i].m = map[uint64]cacheEntry{}
	}
	return c
}

func (c *ttlCache) shardFor(key uint64) *cacheShard {
	return &c.shards[key%cacheShardCount]
}

func (c *ttlCache) get(key uint64) (geo.Cell, bool, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || c.nowFn().After(e.expires) {
		return geo.Cell{}, false, false
	}
	return e.cell, e.found, true
}

func (c *ttlCache) put(key uint64, cell geo.Cell, found bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = cacheEntry{cell: cell, found: found, expires: c.nowFn().Add(c.ttl)}
}

// sweep drops expired entries and reports how many were evicted.
func (c *ttlCache) sweep() int {
	now := c.nowFn()
	evicted := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, e := range s.m {
			if now.After(e.expires) {
				delete(s.m, k)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}

// scanKey builds a coarse position+owner signature: nearby queries from the
// same raid share one cache slot, bounding staleness to TTL plus one coarse
// cell of drift.
func scanKey(ownerID string, p geo.Vec3, radius float64) uint64 {
	var oh uint64
	for _, b := range []byte(ownerID) {
		oh = oh*131 + uint64(b)
	}
	cx := mathx.FloorDiv(int(p.X), 4)
	cy := mathx.FloorDiv(int(p.Y), 4)
	cz := mathx.FloorDiv(int(p.Z), 4)
	return mathx.Hash3(int64(oh)^int64(radius*16), cx, cy, cz)
}
