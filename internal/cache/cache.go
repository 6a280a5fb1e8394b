// Package cache keeps encoded responses in memory.
//
// Entries live in a freecache ring buffer, so the cache never grows beyond
// its configured size and evicts the oldest entries first. Concurrent misses
// on the same key are collapsed: one caller renders, the others wait for its
// result.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MinSize is the smallest cache size freecache accepts, in bytes.
const MinSize = 512 * 1024

// Stats counts cache lookups.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Entries   int64  `json:"entries"`
	Evictions int64  `json:"evictions"`
}

// Cache is a byte cache of rendered responses. A nil *Cache is valid and
// caches nothing. Cache is safe for concurrent use.
type Cache struct {
	store *freecache.Cache
	ttl   int
	log   *zap.Logger
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns a cache holding up to size bytes. Entries expire after ttl; a
// zero ttl keeps them until evicted. A non-positive size disables caching
// and returns nil.
func New(size int, ttl time.Duration, log *zap.Logger) *Cache {
	if size <= 0 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	size = max(size, MinSize)
	log.Info("created response cache",
		zap.String("size", humanize.IBytes(uint64(size))),
		zap.Duration("ttl", ttl))
	return &Cache{
		store: freecache.NewCache(size),
		ttl:   int(ttl / time.Second),
		log:   log,
	}
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// Get returns the entry stored under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, err := c.store.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			c.log.Warn("response cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return v, true
}

// Set stores value under key. Values too large for the cache are skipped.
func (c *Cache) Set(key string, value []byte) {
	if c == nil {
		return
	}
	if err := c.store.Set([]byte(key), value, c.ttl); err != nil {
		c.log.Debug("response not cached",
			zap.String("size", humanize.IBytes(uint64(len(value)))),
			zap.Error(err))
	}
}

// RenderFunc renders the value of a missing entry.
type RenderFunc func(ctx context.Context) ([]byte, error)

// GetOrRender returns the entry stored under key, calling render on a miss
// and storing its result. Concurrent misses on the same key call render
// once. hit is true when the value came from the cache.
//
// The shared render is not canceled when the caller that started it goes
// away: it runs under ctx's deadline only, and each caller stops waiting
// when its own ctx is done. Render errors are returned to every waiting
// caller and nothing is stored.
func (c *Cache) GetOrRender(ctx context.Context, key string, render RenderFunc) (value []byte, hit bool, err error) {
	if c == nil {
		v, err := render(ctx)
		return v, false, err
	}
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		renderCtx, cancel := detach(ctx)
		defer cancel()
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := render(renderCtx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// detach returns a context carrying the values and the deadline of ctx but
// not its cancellation.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	d := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(d, deadline)
	}
	return context.WithCancel(d)
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Entries:   c.store.EntryCount(),
		Evictions: c.store.EvacuateCount(),
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.store.Clear()
	c.hits.Store(0)
	c.misses.Store(0)
}
