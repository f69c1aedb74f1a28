package terminal

import (
	"sync"
	"time"

	"multiStratBot/internal/domain"
)

// metadataCache holds symbol metadata with a fixed TTL. Reads are safe for
// concurrent use; refresh is single-writer (the owning client). An entry
// older than the TTL is never returned: the caller must refetch.
type metadataCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	fetchedAt time.Time
	meta      domain.SymbolMetadata
}

func newMetadataCache(ttl time.Duration, now func() time.Time) *metadataCache {
	return &metadataCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached metadata and true only while the entry is fresh.
func (c *metadataCache) get(symbol string) (domain.SymbolMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return domain.SymbolMetadata{}, false
	}
	return e.meta, true
}

func (c *metadataCache) put(symbol string, meta domain.SymbolMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = cacheEntry{fetchedAt: c.now(), meta: meta}
}
