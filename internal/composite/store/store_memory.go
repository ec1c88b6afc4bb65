package store

import (
	"context"
	"sync"
	"time"

	"composite/internal/composite/models"
	"composite/pkg/platform/sentinel"
)

type memoryEntry struct {
	product   models.Product
	expiresAt time.Time
}

// InMemoryProductCache is a process-local cache for single instance runs.
type InMemoryProductCache struct {
	mu      sync.RWMutex
	entries map[int]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemoryProductCache(ttl time.Duration) *InMemoryProductCache {
	return &InMemoryProductCache{
		entries: make(map[int]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *InMemoryProductCache) Get(_ context.Context, productID int) (models.Product, error) {
	c.mu.RLock()
	e, ok := c.entries[productID]
	c.mu.RUnlock()
	if !ok || (c.ttl > 0 && c.now().After(e.expiresAt)) {
		return models.Product{}, sentinel.ErrNotFound
	}
	return e.product, nil
}

func (c *InMemoryProductCache) Put(_ context.Context, product models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[product.ProductID] = memoryEntry{product: product, expiresAt: c.now().Add(c.ttl)}
	return nil
}
