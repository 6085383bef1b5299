package gateway

import "sync"

// DedupCache suppresses redelivered webhook events. It is a bounded set with
// FIFO eviction: once capacity is reached, the oldest inserted ids are
// dropped first. Dedup only needs recency, not popularity.
type DedupCache struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

// NewDedupCache creates a cache holding at most capacity event ids.
func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DedupCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// CheckAndMark reports whether id was already seen, marking it as seen if
// not. The check and the insert are a single atomic step so two concurrent
// deliveries of the same event cannot both pass.
func (c *DedupCache) CheckAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	c.seen[id] = struct{}{}
	c.order = append(c.order, id)

	for len(c.seen) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	return false
}

// Len returns the number of ids currently held.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
