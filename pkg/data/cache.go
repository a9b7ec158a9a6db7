package data

import (
	"sync"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// MemoryCache implements Cache with in-memory storage. Reads and writes
// copy the series so cached bars stay immutable.
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string][]types.OHLCV)}
}

func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	result := make([]types.OHLCV, len(data))
	copy(result, data)
	return result, true
}

func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached := make([]types.OHLCV, len(data))
	copy(cached, data)
	c.cache[key] = cached
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]types.OHLCV)
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
