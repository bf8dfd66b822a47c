// Package textcache holds the indexed text of each product for the rerank stage.
package textcache

import "sync"

// Cache maps product identifier to the text that was embedded for it. It is never consulted
// for similarity; it only supplies candidate text to the reranker.
type Cache struct {
	texts map[string]string
	mu    sync.RWMutex
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{texts: make(map[string]string)}
}

// Put stores text for id, replacing any previous value.
func (c *Cache) Put(id, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts[id] = text
}

// Get returns the text for id. The boolean is false when id is unknown.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.texts[id]
	return text, ok
}

// Has reports whether id has an entry.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.texts[id]
	return ok
}

// Delete removes id.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.texts, id)
}

// Reset removes every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = make(map[string]string)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.texts)
}
