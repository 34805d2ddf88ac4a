// Package cache stores prior analysis results keyed by a fingerprint of
// the input record set, so identical inputs within the TTL window never
// trigger a second paid inference call.
package cache

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL applies when an agent does not set its own TTL.
const DefaultTTL = 24 * time.Hour

// cleanupInterval is how often expired entries are swept. Lookups
// already treat expired entries as misses; the sweep only reclaims
// memory.
const cleanupInterval = time.Hour

// Input identifies one record contributing to a fingerprint.
type Input struct {
	ID uuid.UUID
	At time.Time
}

// Fingerprint derives a deterministic key from the ordered input set.
// Only identifiers and timestamps participate: two calls over the same
// record set collide even if content fields changed. That is a
// deliberate approximation: journal records are append-only within the
// TTL window, so an unchanged (id, timestamp) list means unchanged
// inputs.
func Fingerprint(scope string, inputs []Input) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope))
	for _, in := range inputs {
		fmt.Fprintf(h, "|%s@%d", in.ID, in.At.UnixNano())
	}
	return fmt.Sprintf("%s:%016x", scope, h.Sum64())
}

// Cache is a TTL-bound result store backed by go-cache.
type Cache struct {
	c *gocache.Cache
}

// New creates a cache with the given default TTL (DefaultTTL if
// non-positive).
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{c: gocache.New(defaultTTL, cleanupInterval)}
}

// Lookup returns the cached result for fingerprint, or false on miss.
// Entries past their TTL are misses.
func (c *Cache) Lookup(fingerprint string) (any, bool) {
	return c.c.Get(fingerprint)
}

// Store upserts a result under fingerprint with the given TTL
// (the cache default if non-positive).
func (c *Cache) Store(fingerprint string, result any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.c.Set(fingerprint, result, ttl)
}

// Invalidate removes an entry before its TTL expires.
func (c *Cache) Invalidate(fingerprint string) {
	c.c.Delete(fingerprint)
}

// Len returns the number of live entries (including not-yet-swept
// expired ones). Exposed for metrics.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}
