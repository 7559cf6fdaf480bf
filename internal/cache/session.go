package cache

import (
	"container/list"
	"os"
	"sync"
	"time"

	"github.com/baaaaaaaka/claude_code_reader/internal/display"
	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

const DefaultSessionCapacity = 20

// SessionEntry is a loaded session together with the file state it was
// loaded from. Records and Bundle are shared between readers and must not
// be mutated.
type SessionEntry struct {
	Records []*transcript.Record
	Bundle  *display.Bundle
	ModTime time.Time
	Size    int64
}

type sessionItem struct {
	path  string
	entry SessionEntry
}

// SessionCache is an LRU of loaded sessions keyed by file path. An entry is
// only served while the file's mtime and size still match what was loaded.
type SessionCache struct {
	capacity int
	stat     func(string) (os.FileInfo, error)
	locks    keyLocks

	mu      sync.Mutex
	ll      *list.List
	items   map[string]*list.Element
	onEvict []func(path string)
}

func NewSessionCache(capacity int) *SessionCache {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &SessionCache{
		capacity: capacity,
		stat:     os.Stat,
		ll:       list.New(),
		items:    map[string]*list.Element{},
	}
}

// OnEvict registers fn to run whenever an entry leaves the cache. Hooks run
// after the cache lock is released.
func (c *SessionCache) OnEvict(fn func(path string)) {
	c.mu.Lock()
	c.onEvict = append(c.onEvict, fn)
	c.mu.Unlock()
}

// Lock serializes loads and mutations of one session. The returned func
// releases the lock and is safe to call more than once.
func (c *SessionCache) Lock(path string) func() {
	return c.locks.lock(path)
}

func (c *SessionCache) Get(path string) (SessionEntry, bool) {
	info, statErr := c.stat(path)

	c.mu.Lock()
	el, ok := c.items[path]
	if !ok {
		c.mu.Unlock()
		return SessionEntry{}, false
	}
	item := el.Value.(*sessionItem)
	if statErr != nil || !info.ModTime().Equal(item.entry.ModTime) || info.Size() != item.entry.Size {
		c.removeLocked(el)
		hooks := c.hooksLocked()
		c.mu.Unlock()
		fire(hooks, path)
		return SessionEntry{}, false
	}
	c.ll.MoveToFront(el)
	entry := item.entry
	c.mu.Unlock()
	return entry, true
}

func (c *SessionCache) Put(path string, entry SessionEntry) {
	c.mu.Lock()
	if el, ok := c.items[path]; ok {
		el.Value.(*sessionItem).entry = entry
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	c.items[path] = c.ll.PushFront(&sessionItem{path: path, entry: entry})
	var evicted []string
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		evicted = append(evicted, oldest.Value.(*sessionItem).path)
		c.removeLocked(oldest)
	}
	hooks := c.hooksLocked()
	c.mu.Unlock()
	for _, p := range evicted {
		fire(hooks, p)
	}
}

// Evict drops path. Hooks fire even when nothing was cached so dependent
// caches are always cleared.
func (c *SessionCache) Evict(path string) {
	c.mu.Lock()
	if el, ok := c.items[path]; ok {
		c.removeLocked(el)
	}
	hooks := c.hooksLocked()
	c.mu.Unlock()
	fire(hooks, path)
}

func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *SessionCache) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*sessionItem).path)
}

func (c *SessionCache) hooksLocked() []func(string) {
	if len(c.onEvict) == 0 {
		return nil
	}
	out := make([]func(string), len(c.onEvict))
	copy(out, c.onEvict)
	return out
}

func fire(hooks []func(string), path string) {
	for _, fn := range hooks {
		fn(path)
	}
}
