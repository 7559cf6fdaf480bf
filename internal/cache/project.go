package cache

import (
	"context"
	"sync"
	"time"

	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
)

const DefaultProjectTTL = 30 * time.Second

// ProjectCache holds the most recent project scan for a fixed window.
type ProjectCache struct {
	ttl time.Duration
	now func() time.Time

	loadMu sync.Mutex

	mu       sync.Mutex
	projects []claudehistory.Project
	loadedAt time.Time
	valid    bool
	// gen is bumped by Invalidate; a scan that overlaps it is not cached.
	gen uint64
}

func NewProjectCache(ttl time.Duration) *ProjectCache {
	if ttl <= 0 {
		ttl = DefaultProjectTTL
	}
	return &ProjectCache{ttl: ttl, now: time.Now}
}

// Get returns the cached projects if the last scan is still inside the TTL.
func (c *ProjectCache) Get() ([]claudehistory.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.projects, true
}

func (c *ProjectCache) Invalidate() {
	c.mu.Lock()
	c.projects = nil
	c.valid = false
	c.gen++
	c.mu.Unlock()
}

func (c *ProjectCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// setIfCurrent caches projects unless Invalidate ran since gen was read.
func (c *ProjectCache) setIfCurrent(projects []claudehistory.Project, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.projects = projects
	c.loadedAt = c.now()
	c.valid = true
	return true
}

// Load returns the cached projects or runs scan and caches its result.
// Concurrent callers that miss share one scan. A failed scan leaves the
// cache empty, and so does a scan that raced with Invalidate; its result is
// still returned to the caller.
func (c *ProjectCache) Load(ctx context.Context, scan func(context.Context) ([]claudehistory.Project, error)) ([]claudehistory.Project, error) {
	if projects, ok := c.Get(); ok {
		return projects, nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if projects, ok := c.Get(); ok {
		return projects, nil
	}
	gen := c.generation()
	projects, err := scan(ctx)
	if err != nil {
		return nil, err
	}
	c.setIfCurrent(projects, gen)
	return projects, nil
}
