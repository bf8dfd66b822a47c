// Package idmap maps vector-index slots to external product identifiers.
package idmap

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned when resolving a slot the map does not hold.
// Under correct orchestration it never occurs.
var ErrIndexOutOfRange = errors.New("slot index out of range")

// Map is an append-only, ordered sequence of identifiers. Position i holds the identifier of
// vector slot i.
type Map struct {
	ids []string
	mu  sync.RWMutex
}

// New returns an empty map.
func New() *Map {
	return &Map{ids: make([]string, 0)}
}

// Append adds ids starting at slot base. base must equal the current length; this is the
// only shape check the map performs and guards against appends racing or being replayed.
func (m *Map) Append(base int, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if base != len(m.ids) {
		return fmt.Errorf("append at slot %d: map holds %d identifiers", base, len(m.ids))
	}
	m.ids = append(m.ids, ids...)
	return nil
}

// Resolve returns the identifier stored at slot.
func (m *Map) Resolve(slot int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot < 0 || slot >= len(m.ids) {
		return "", fmt.Errorf("%w: slot %d, length %d", ErrIndexOutOfRange, slot, len(m.ids))
	}
	return m.ids[slot], nil
}

// Len returns the number of identifiers.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Truncate drops every slot >= n. Used only to roll back a failed append.
func (m *Map) Truncate(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n > len(m.ids) {
		return fmt.Errorf("truncate to %d: map holds %d identifiers", n, len(m.ids))
	}
	m.ids = append([]string(nil), m.ids[:n]...)
	return nil
}

// IDs returns a copy of the identifiers in slot order.
func (m *Map) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.ids...)
}
