package monitor

import (
	"sync"
	"time"
)

// InMemoryCollector counts events by label. Used by tests and the debug dump.
type InMemoryCollector struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{counts: make(map[string]int)}
}

func (c *InMemoryCollector) inc(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
}

func (c *InMemoryCollector) CacheLookup(backend string, hit bool) {
	if hit {
		c.inc("cache:" + backend + ":hit")
		return
	}
	c.inc("cache:" + backend + ":miss")
}

func (c *InMemoryCollector) ProviderCall(provider, op string, err error, _ time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.inc("provider:" + provider + ":" + op + ":" + outcome)
}

func (c *InMemoryCollector) CoordinatorRequest(kind, status string) {
	c.inc("coordinator:" + kind + ":" + status)
}

func (c *InMemoryCollector) TaskRun(kind, outcome string, _ time.Duration) {
	c.inc("task:" + kind + ":" + outcome)
}

// Count returns the number of events recorded under key, e.g.
// "provider:openai:embed:error".
func (c *InMemoryCollector) Count(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[key]
}

func (c *InMemoryCollector) Snapshot() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
