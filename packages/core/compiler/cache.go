package compiler

import (
	"sync"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"golang.org/x/sync/singleflight"
)

// Cache indexes compiled scenarios by collection and name. It is safe for
// concurrent use.
type Cache struct {
	mu        sync.RWMutex
	scenarios map[string]*scenario.Scenario
	loads     singleflight.Group
}

func NewCache() *Cache {
	return &Cache{scenarios: make(map[string]*scenario.Scenario)}
}

func scenarioKey(collection, name string) string {
	return collection + "/" + name
}

// Add stores a copy of s, replacing any earlier version.
func (c *Cache) Add(s *scenario.Scenario) {
	clone := s.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarios[scenarioKey(s.Collection, s.Name)] = clone
}

// Scenario returns a copy of the cached scenario.
func (c *Cache) Scenario(collection, name string) (*scenario.Scenario, bool) {
	c.mu.RLock()
	s, ok := c.scenarios[scenarioKey(collection, name)]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Endpoint returns copies of the scenario and endpoint ref points to.
func (c *Cache) Endpoint(ref scenario.Ref) (*scenario.Scenario, *scenario.Endpoint, bool) {
	s, ok := c.Scenario(ref.Collection, ref.Scenario)
	if !ok {
		return nil, nil, false
	}
	ep := s.Endpoint(ref.Endpoint)
	if ep == nil {
		return nil, nil, false
	}
	return s, ep, true
}

// Len returns the number of cached scenarios.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenarios)
}

// load runs fn once per key among concurrent callers.
func (c *Cache) load(key string, fn func() error) error {
	_, err, _ := c.loads.Do(key, func() (any, error) {
		return nil, fn()
	})
	return err
}
