// Package editfeed keeps the recent-edit feed of the signed-in user: a
// process-wide, insertion-ordered cache of edit entries filled page by page.
package editfeed

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/arbor/internal/models"
)

// Cache maps edit id to entry in first-seen order. Merges add or refresh
// entries and never drop existing ones unless a bound is configured.
type Cache struct {
	mu         sync.RWMutex
	entries    *orderedmap.OrderedMap[int, *models.EditEntry]
	maxEntries int
}

// NewCache returns an empty cache. maxEntries <= 0 means unbounded; otherwise
// the oldest entries are evicted once the bound is exceeded.
func NewCache(maxEntries int) *Cache {
	return &Cache{
		entries:    orderedmap.New[int, *models.EditEntry](),
		maxEntries: maxEntries,
	}
}

var shared = NewCache(0)

// Shared returns the process-wide cache.
func Shared() *Cache { return shared }

// Merge stores entries by id and returns how many ids were new. Entries
// without a readable id are skipped. An id seen before keeps its position.
func (c *Cache) Merge(entries []*models.EditEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, e := range entries {
		id, err := e.ID()
		if err != nil {
			continue
		}
		if _, present := c.entries.Set(id, e); !present {
			added++
		}
	}
	if c.maxEntries > 0 {
		for c.entries.Len() > c.maxEntries {
			oldest := c.entries.Oldest()
			c.entries.Delete(oldest.Key)
		}
	}
	return added
}

// Get returns the entry for id.
func (c *Cache) Get(id int) (*models.EditEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Get(id)
}

// Entries returns all entries in insertion order.
func (c *Cache) Entries() []*models.EditEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.EditEntry, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[int, *models.EditEntry]()
}
