package cache

import "sync"

// keyLocks hands out one mutex per key. Slots are reference counted and
// returned to the arena when the last holder unlocks, so the map only holds
// keys that are in use.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.slots == nil {
		k.slots = map[string]*keySlot{}
	}
	slot, ok := k.slots[key]
	if !ok {
		slot = &keySlot{}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	slot.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			slot.mu.Unlock()
			k.mu.Lock()
			slot.refs--
			if slot.refs == 0 {
				delete(k.slots, key)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyLocks) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
