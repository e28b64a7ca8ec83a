package memory

import (
	"context"
	"slices"
	"sync"

	"habita/internal/app/dto"
	"habita/internal/app/policies"
)

// OccupancyCache is the in-process cache used when Redis is not configured.
type OccupancyCache struct {
	mu          sync.RWMutex
	items       map[string]dto.OccupiedDates
	generations map[string]int64
}

func NewOccupancyCache() *OccupancyCache {
	return &OccupancyCache{
		items:       make(map[string]dto.OccupiedDates),
		generations: make(map[string]int64),
	}
}

func (c *OccupancyCache) Get(_ context.Context, propertyID string) (dto.OccupiedDates, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[propertyID]
	if ok {
		v.Dates = slices.Clone(v.Dates)
	}
	return v, ok, nil
}

func (c *OccupancyCache) Generation(_ context.Context, propertyID string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[propertyID], nil
}

// Set is a no-op when the property was invalidated after generation was read.
func (c *OccupancyCache) Set(_ context.Context, propertyID string, generation int64, value dto.OccupiedDates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[propertyID] != generation {
		return nil
	}
	value.Dates = slices.Clone(value.Dates)
	c.items[propertyID] = value
	return nil
}

func (c *OccupancyCache) Invalidate(_ context.Context, propertyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, propertyID)
	c.generations[propertyID]++
	return nil
}

var _ policies.OccupancyCache = (*OccupancyCache)(nil)
