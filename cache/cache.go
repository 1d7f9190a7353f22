/*
Package cache provides the TTL key/value cache used to avoid redundant
upstream calls for identical queries.

PURPOSE:
  The cache is an optimization, never a dependency: any failure of the
  underlying transport degrades to a miss. The in-memory implementation
  below cannot fail, but callers still program against the interface so a
  networked cache can slot in without touching the protocol.

IMPLEMENTATION:
  xsync.MapOf keyed by string with a per-entry deadline. Expired entries
  are dropped lazily on Get plus by a periodic sweep, so long-idle keys do
  not pin memory.
*/
package cache

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	cacheHits   = metrics.NewCounter("cache_hits_total")
	cacheMisses = metrics.NewCounter("cache_misses_total")
)

// Cache is the minimal contract the upstream client needs.
type Cache interface {
	// Get returns the cached value, or (nil, false) on miss or expiry.
	Get(key string) (any, bool)
	// Set stores value under key for ttl. Non-positive ttl stores nothing.
	Set(key string, value any, ttl time.Duration)
	// Invalidate drops the key if present.
	Invalidate(key string)
}

type entry struct {
	value    any
	deadline time.Time
}

// Memory is the in-process Cache implementation. Safe for concurrent use.
type Memory struct {
	entries *xsync.MapOf[string, entry]
	stop    chan struct{}
}

// NewMemory creates a cache that sweeps expired entries every minute.
func NewMemory() *Memory {
	m := &Memory{
		entries: xsync.NewMapOf[string, entry](),
		stop:    make(chan struct{}),
	}
	go m.sweep(time.Minute)
	return m
}

// Get returns the value for key if present and unexpired.
func (m *Memory) Get(key string) (any, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	if time.Now().After(e.deadline) {
		m.entries.Delete(key)
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key for ttl.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.entries.Store(key, entry{value: value, deadline: time.Now().Add(ttl)})
}

// Invalidate drops the key.
func (m *Memory) Invalidate(key string) {
	m.entries.Delete(key)
}

// Close stops the background sweep.
func (m *Memory) Close() {
	close(m.stop)
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.entries.Range(func(key string, e entry) bool {
				if now.After(e.deadline) {
					m.entries.Delete(key)
				}
				return true
			})
		}
	}
}
