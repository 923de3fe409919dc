// Package credential holds the weather-provider API key, rotatable at runtime.
package credential

import (
	"strings"
	"sync"
)

// UpdatedMessage is returned by Set.
const UpdatedMessage = "API key updated successfully"

// Cell stores the current API key. Values are not validated; last writer wins.
type Cell struct {
	mu  sync.RWMutex
	key string
}

// NewCell returns a Cell seeded with key.
func NewCell(key string) *Cell {
	return &Cell{key: key}
}

// Get returns the current key.
func (c *Cell) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// Set replaces the key and returns a confirmation message.
func (c *Cell) Set(key string) string {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return UpdatedMessage
}

// Masked returns the key with all but the last four characters hidden.
func (c *Cell) Masked() string {
	return Mask(c.Get())
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
