package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/tenant"
	"github.com/redis/go-redis/v9"
)

// ErrTenantRequired is returned when a cache operation runs without a
// tenant in the context
var ErrTenantRequired = errors.New("tenant is required but not found in context")

// TenantCache is a cache namespace partitioned per tenant. Keys are
// transparently prefixed with the tenant from the context, so one
// tenant can never read or clobber another's entries.
type TenantCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Flush removes every entry of the tenant in the context
	Flush(ctx context.Context) error
}

func tenantPrefix(ctx context.Context) (string, error) {
	t, ok := tenant.TenancyFromContext(ctx)
	if !ok {
		return "", ErrTenantRequired
	}
	return fmt.Sprintf("tenant_%s_", t.UID), nil
}

// RedisTenantCache implements TenantCache on Redis
type RedisTenantCache struct {
	client *redis.Client
}

// NewRedisTenantCache creates a tenant cache on an existing Redis client
func NewRedisTenantCache(client *redis.Client) *RedisTenantCache {
	return &RedisTenantCache{client: client}
}

// Get returns the cached value for the tenant-prefixed key
func (c *RedisTenantCache) Get(ctx context.Context, key string) (string, bool, error) {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return "", false, err
	}
	value, err := c.client.Get(ctx, prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read tenant cache: %w", err)
	}
	return value, true, nil
}

// Set stores a value under the tenant-prefixed key
func (c *RedisTenantCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write tenant cache: %w", err)
	}
	return nil
}

// Delete removes the tenant-prefixed key
func (c *RedisTenantCache) Delete(ctx context.Context, key string) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete tenant cache entry: %w", err)
	}
	return nil
}

// Flush removes all entries of the tenant in the context
func (c *RedisTenantCache) Flush(ctx context.Context) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to flush tenant cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan tenant cache: %w", err)
	}
	return nil
}

var _ TenantCache = (*RedisTenantCache)(nil)

// InMemoryTenantCache implements TenantCache for tests
type InMemoryTenantCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
}

type inMemoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryTenantCache creates an in-memory tenant cache
func NewInMemoryTenantCache() *InMemoryTenantCache {
	return &InMemoryTenantCache{entries: make(map[string]inMemoryEntry)}
}

// Get returns the cached value for the tenant-prefixed key
func (c *InMemoryTenantCache) Get(ctx context.Context, key string) (string, bool, error) {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return "", false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[prefix+key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores a value under the tenant-prefixed key
func (c *InMemoryTenantCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := inMemoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[prefix+key] = entry
	return nil
}

// Delete removes the tenant-prefixed key
func (c *InMemoryTenantCache) Delete(ctx context.Context, key string) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, prefix+key)
	return nil
}

// Flush removes all entries of the tenant in the context
func (c *InMemoryTenantCache) Flush(ctx context.Context) error {
	prefix, err := tenantPrefix(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

var _ TenantCache = (*InMemoryTenantCache)(nil)
