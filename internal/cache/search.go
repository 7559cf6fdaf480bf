package cache

import (
	"sync"

	"github.com/baaaaaaaka/claude_code_reader/internal/search"
)

// SearchCache remembers matched unit ids per session and normalized query.
type SearchCache struct {
	mu      sync.Mutex
	entries map[string]map[string][]string
}

func NewSearchCache() *SearchCache {
	return &SearchCache{entries: map[string]map[string][]string{}}
}

func (c *SearchCache) Get(path string, q search.Query) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.entries[path][q.Key()]
	if !ok {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

func (c *SearchCache) Put(path string, q search.Query, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byQuery, ok := c.entries[path]
	if !ok {
		byQuery = map[string][]string{}
		c.entries[path] = byQuery
	}
	byQuery[q.Key()] = append([]string{}, ids...)
}

func (c *SearchCache) InvalidatePath(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len is the number of cached queries across all sessions.
func (c *SearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, byQuery := range c.entries {
		n += len(byQuery)
	}
	return n
}
