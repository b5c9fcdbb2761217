package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/store"
)

// cacheEntry is a rendered export response.
type cacheEntry struct {
	body        []byte
	contentType string
	filename    string
	expiresAt   time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// exportCache holds rendered exports in memory until they expire or the
// next import purges them.
type exportCache struct {
	memory *lru.Cache[string, *cacheEntry]
	ttl    time.Duration
	now    func() time.Time
}

// newExportCache returns nil when caching is disabled (size or ttl zero).
func newExportCache(size int, ttl time.Duration) (*exportCache, error) {
	if size <= 0 || ttl <= 0 {
		return nil, nil
	}
	memory, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("api: creating export cache: %w", err)
	}
	return &exportCache{memory: memory, ttl: ttl, now: time.Now}, nil
}

// exportKey derives a cache key from everything that shapes the response.
func exportKey(dataset, format string, f store.Filter) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", dataset, format, f.StartDate, f.EndDate)
	h.Write([]byte(strings.Join(f.Stores, ",")))
	h.Write([]byte{0})
	for _, hr := range f.Hours {
		fmt.Fprintf(h, "%d,", hr)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *exportCache) get(key string) (*cacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.memory.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.memory.Remove(key)
		return nil, false
	}
	return e, true
}

func (c *exportCache) add(key string, e *cacheEntry) {
	if c == nil {
		return
	}
	e.expiresAt = c.now().Add(c.ttl)
	c.memory.Add(key, e)
}

// purge drops every entry. Imports call it so exports never outlive the
// data they were rendered from.
func (c *exportCache) purge() {
	if c == nil {
		return
	}
	c.memory.Purge()
}

func (c *exportCache) len() int {
	if c == nil {
		return 0
	}
	return c.memory.Len()
}

// evictExpired removes entries past their TTL.
func (c *exportCache) evictExpired() {
	now := c.now()
	for _, key := range c.memory.Keys() {
		if e, ok := c.memory.Peek(key); ok && e.expired(now) {
			c.memory.Remove(key)
		}
	}
}

// startPurger evicts expired entries every interval until ctx is done. The
// returned channel closes when the goroutine exits.
func (c *exportCache) startPurger(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if c == nil {
		close(done)
		return done
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("export cache purger: recovered from panic")
						}
					}()
					c.evictExpired()
				}()
			}
		}
	}()
	return done
}
