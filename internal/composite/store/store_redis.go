package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"composite/internal/composite/models"
	"composite/pkg/platform/sentinel"
)

const productKeyPrefix = "composite:product:"

// RedisProductCache shares last-known products between gateway replicas.
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: ttl}
}

func (c *RedisProductCache) Get(ctx context.Context, productID int) (models.Product, error) {
	raw, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Product{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get cached product: %w", err)
	}
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Product{}, fmt.Errorf("decode cached product: %w", err)
	}
	return p, nil
}

// Put stores the product with the cache TTL. A zero TTL keeps it forever.
func (c *RedisProductCache) Put(ctx context.Context, product models.Product) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	return c.client.Set(ctx, productKey(product.ProductID), raw, c.ttl).Err()
}

func productKey(productID int) string {
	return productKeyPrefix + strconv.Itoa(productID)
}
