// Package registers implements the register cache (component C4): a
// single-writer, single-reader snapshot of the CPU registers, invalidated
// around every resume and coalescing concurrent fetches onto one
// in-flight GET_REGISTERS.
package registers

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

// Fetcher performs one GET_REGISTERS round trip against the remote.
type Fetcher func() (protocol.RegisterSnapshot, error)

// Cache holds the latest register snapshot. Get is the writer: it installs
// the result of its own fetch (a GET_REGISTERS round trip) via Set; the
// stepping controller and condition evaluator are the readers (via Get).
type Cache struct {
	mu       sync.Mutex
	snapshot protocol.RegisterSnapshot
	valid    bool

	fetch Fetcher
	group singleflight.Group
}

// NewCache creates an invalid cache backed by fetch for on-demand reloads.
func NewCache(fetch Fetcher) *Cache {
	return &Cache{fetch: fetch}
}

// Invalidate marks the cache stale. Called before every CONTINUE, on
// SET_REGISTER, on snapshot load, and on disconnect (spec §4.4).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Set installs a fresh snapshot. Get calls this when its GET_REGISTERS
// fetch completes.
func (c *Cache) Set(snap protocol.RegisterSnapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.valid = true
	c.mu.Unlock()
}

// Valid reports whether the cache can be read without a fetch.
func (c *Cache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Get returns the current snapshot, fetching first if the cache is stale.
// Concurrent callers that arrive while a fetch is already in flight share
// its result instead of issuing their own GET_REGISTERS (spec §4.4).
func (c *Cache) Get() (protocol.RegisterSnapshot, error) {
	c.mu.Lock()
	if c.valid {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		snap, err := c.fetch()
		if err != nil {
			return protocol.RegisterSnapshot{}, err
		}
		c.Set(snap)
		return snap, nil
	})
	if err != nil {
		return protocol.RegisterSnapshot{}, err
	}
	return v.(protocol.RegisterSnapshot), nil
}

// PC is a convenience accessor used throughout the stepping controller.
func (c *Cache) PC() (uint16, error) {
	snap, err := c.Get()
	if err != nil {
		return 0, err
	}
	return snap[protocol.RegPC], nil
}

// SP is a convenience accessor used by the step-out algorithm.
func (c *Cache) SP() (uint16, error) {
	snap, err := c.Get()
	if err != nil {
		return 0, err
	}
	return snap[protocol.RegSP], nil
}
