package responder

import "sync"

// DedupeCache is a bounded set of recently seen message ids. The transport
// can redeliver recent messages, so every id is acted on at most once.
//
// When the set grows past highWater it is compacted to the most recently
// inserted keepTail entries (insertion order, not recency of access). Very
// old ids can therefore be forgotten, which is fine: redeliveries only
// happen for recent messages.
type DedupeCache struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	order     []string
	highWater int
	keepTail  int
}

const (
	defaultHighWater = 5000
	defaultKeepTail  = 4000
)

func NewDedupeCache(highWater, keepTail int) *DedupeCache {
	if highWater <= 0 {
		highWater = defaultHighWater
	}
	if keepTail <= 0 || keepTail >= highWater {
		keepTail = highWater * 4 / 5
	}
	return &DedupeCache{
		seen:      make(map[string]struct{}),
		highWater: highWater,
		keepTail:  keepTail,
	}
}

// Record marks id as seen and reports whether it had been seen before.
// Check and set are a single atomic step.
func (c *DedupeCache) Record(id string) (alreadySeen bool) {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)

	if len(c.order) > c.highWater {
		c.compactLocked()
	}
	return false
}

func (c *DedupeCache) compactLocked() {
	tail := c.order[len(c.order)-c.keepTail:]
	seen := make(map[string]struct{}, len(tail))
	order := make([]string, len(tail))
	copy(order, tail)
	for _, id := range order {
		seen[id] = struct{}{}
	}
	c.seen = seen
	c.order = order
}

// Len reports the current cardinality.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
