package reference

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	employeesCacheKey  = "managehub:reference:employees"
	workOrdersCacheKey = "managehub:reference:work_orders"
)

// Cache wraps a Provider with Redis-backed read-through caching.
// A nil client or zero TTL disables caching.
type Cache struct {
	base  Provider
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Provider using the given Redis client and TTL.
func NewCache(base Provider, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("reference.NewCache: base provider is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ActiveEmployees(ctx context.Context) ([]Employee, error) {
	var employees []Employee
	if c.load(ctx, employeesCacheKey, &employees) {
		return employees, nil
	}
	employees, err := c.base.ActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, employeesCacheKey, employees)
	return employees, nil
}

func (c *Cache) OpenWorkOrders(ctx context.Context) ([]WorkOrder, error) {
	var orders []WorkOrder
	if c.load(ctx, workOrdersCacheKey, &orders) {
		return orders, nil
	}
	orders, err := c.base.OpenWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, workOrdersCacheKey, orders)
	return orders, nil
}

// Evict drops both cached lists.
func (c *Cache) Evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, employeesCacheKey, workOrdersCacheKey).Result()
}

func (c *Cache) load(ctx context.Context, key string, v any) bool {
	if c.redis == nil || c.ttl == 0 {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing provider without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}
