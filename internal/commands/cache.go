package commands

import (
	"sync"
	"time"
)

type cacheItem struct {
	ChartData  []byte
	Caption    string
	Expiration time.Time
}

// chartCache keeps rendered charts for a short while so repeated /grafico
// requests do not re-hit the market API. Guarded because updates may be
// handled concurrently.
type chartCache struct {
	mu    sync.Mutex
	items map[string]*cacheItem
}

func newChartCache() *chartCache {
	return &chartCache{items: make(map[string]*cacheItem)}
}

func (c *chartCache) get(key string) (*cacheItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && time.Now().Before(item.Expiration) {
		return item, true
	}
	return nil, false
}

func (c *chartCache) set(key string, chartData []byte, caption string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		ChartData:  chartData,
		Caption:    caption,
		Expiration: time.Now().Add(duration),
	}
}
