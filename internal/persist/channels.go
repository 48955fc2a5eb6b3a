// Package persist mirrors filter state into the two external channels: the
// shareable address (query string) and durable per-profile storage.
package persist

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

var (
	ErrNotFound = errors.New("durable entry not found")
	ErrNoPreset = errors.New("no preset available")
)

// ShareChannel is the bookmarkable key/value channel.
type ShareChannel interface {
	Values(ctx context.Context) (url.Values, error)
	Replace(ctx context.Context, values url.Values) error
}

// DurableChannel is client-local storage that survives reloads. Get returns
// ErrNotFound for absent keys.
type DurableChannel interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// URLChannel is an in-memory address bar.
type URLChannel struct {
	mu     sync.RWMutex
	values url.Values
}

// NewURLChannel starts from an initial address, typically the request query.
func NewURLChannel(initial url.Values) *URLChannel {
	return &URLChannel{values: cloneValues(initial)}
}

func (c *URLChannel) Values(ctx context.Context) (url.Values, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneValues(c.values), nil
}

func (c *URLChannel) Replace(ctx context.Context, values url.Values) error {
	c.mu.Lock()
	c.values = cloneValues(values)
	c.mu.Unlock()
	return nil
}

// Query returns the encoded query string.
func (c *URLChannel) Query() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// MemoryDurable keeps entries in a map.
type MemoryDurable struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{entries: make(map[string][]byte)}
}

func (m *MemoryDurable) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryDurable) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.entries[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDurable) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
