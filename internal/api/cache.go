package api

import (
	"os"
	"strconv"
	"sync"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

// ExportCache is a thread-safe LRU cache for loaded history exports.
// Exports are immutable once archived, so entries never need invalidation.
type ExportCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*cacheEntry
	order   []string // oldest first
}

type cacheEntry struct {
	history []score.Snapshot
	report  *trend.Report
}

// NewExportCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 20.
func NewExportCache(maxSize int) *ExportCache {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &ExportCache{
		maxSize: maxSize,
		entries: make(map[string]*cacheEntry),
	}
}

// NewExportCacheFromEnv creates a cache with size from EXPORT_CACHE_SIZE env var.
func NewExportCacheFromEnv() *ExportCache {
	size := 20
	if v := os.Getenv("EXPORT_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewExportCache(size)
}

// Get retrieves an export from the cache, or nils if not found.
func (c *ExportCache) Get(id string) ([]score.Snapshot, *trend.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, nil
	}

	// Move to end (most recently used)
	c.moveToEnd(id)
	return entry.history, entry.report
}

// Put adds an export to the cache, evicting the oldest if full.
func (c *ExportCache) Put(id string, history []score.Snapshot, report *trend.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		c.entries[id] = &cacheEntry{history: history, report: report}
		c.moveToEnd(id)
		return
	}

	// Evict oldest if at capacity
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = &cacheEntry{history: history, report: report}
	c.order = append(c.order, id)
}

func (c *ExportCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
