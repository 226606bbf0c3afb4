// Package store provides the local, JSON-serialised collection store.
//
// A Collection is the in-process source of truth for one named list of
// entities. Every mutation is written through to the Backend immediately.
// Backend failures never reach callers: reads fall back to an empty
// collection and writes are logged and dropped.
package store

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned by a Backend when no value exists for a key.
var ErrNotFound = errors.New("key not found")

// Backend is a durable key-value medium for serialised collections.
type Backend interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
}

// Load reads and decodes the collection stored under key.
// Absent, unreadable, or corrupt records yield an empty, non-nil slice.
func Load[T any](backend Backend, key string) []T {
	data, err := backend.Read(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zlog.Warn().Err(err).Msgf("store: failed to read %s, using empty collection", key)
		}
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		zlog.Warn().Err(err).Msgf("store: corrupt record for %s, using empty collection", key)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

// Save encodes and writes the collection under key.
// Errors are logged and swallowed; the caller's in-memory state stays authoritative.
func Save[T any](backend Backend, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		zlog.Error().Err(err).Msgf("store: failed to encode %s", key)
		return
	}
	if err := backend.Write(key, data); err != nil {
		zlog.Warn().Err(err).Msgf("store: failed to persist %s", key)
	}
}

// Collection caches one persisted collection in memory.
type Collection[T any] struct {
	mu      sync.RWMutex
	backend Backend
	key     string
	items   []T
}

// NewCollection loads the collection stored under key.
func NewCollection[T any](backend Backend, key string) *Collection[T] {
	return &Collection[T]{
		backend: backend,
		key:     key,
		items:   Load[T](backend, key),
	}
}

// All returns a copy of the current items.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, len(c.items))
	copy(result, c.items)
	return result
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Update replaces the items with fn's result and persists them.
// fn receives a copy and must return the complete new collection.
// Concurrent updates are serialised.
func (c *Collection[T]) Update(fn func(items []T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make([]T, len(c.items))
	copy(current, c.items)

	next := fn(current)
	if next == nil {
		next = []T{}
	}
	c.items = next
	Save(c.backend, c.key, c.items)
}
