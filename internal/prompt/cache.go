package prompt

import "sync"

// SpecialtyCache memoizes pre-composed specialty prompt text for the life
// of the process. Entries are written at most once per key and never
// evicted. Callers construct and inject it, so tests control its lifetime.
type SpecialtyCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewSpecialtyCache() *SpecialtyCache {
	return &SpecialtyCache{entries: make(map[string]string)}
}

func (c *SpecialtyCache) Get(specialtyID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[specialtyID]
	return text, ok
}

func (c *SpecialtyCache) Set(specialtyID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[specialtyID]; ok {
		return
	}
	c.entries[specialtyID] = text
}

func (c *SpecialtyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
