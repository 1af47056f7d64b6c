package fetch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gobwas/glob"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/filter"
)

// cacheKey renders a payload as canonical JSON. Go sorts map keys when
// marshalling, so two snapshots with the same entries always collide.
func cacheKey(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", sifterrors.FromError(err, "E060").WithDetail("filter payload is not serializable")
	}
	return string(raw), nil
}

type cacheEntry[T any] struct {
	data     T
	storedAt time.Time
	origin   filter.Origin
}

// cache is a TTL map keyed by canonical payload JSON. A zero ttl disables
// it entirely; reads and writes become no-ops.
type cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry[T]
	now     func() time.Time
}

func newCache[T any](ttl time.Duration) *cache[T] {
	return &cache[T]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[T]),
		now:     time.Now,
	}
}

func (c *cache[T]) enabled() bool { return c.ttl > 0 }

func (c *cache[T]) get(key string) (cacheEntry[T], bool) {
	if !c.enabled() {
		return cacheEntry[T]{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry[T]{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return cacheEntry[T]{}, false
	}
	return entry, true
}

func (c *cache[T]) put(key string, data T, origin filter.Origin) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[T]{data: data, storedAt: c.now(), origin: origin}
}

func (c *cache[T]) clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry[T])
	return n
}

// clearMatching drops entries whose key matches the glob pattern. Keys are
// canonical JSON, so `*"category":"books"*` hits every snapshot with that
// filter set.
func (c *cache[T]) clearMatching(pattern string) (int, error) {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return 0, sifterrors.FromError(err, "E060").WithDetail("bad invalidation pattern")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if matcher.Match(key) {
			delete(c.entries, key)
			n++
		}
	}
	return n, nil
}

func (c *cache[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
